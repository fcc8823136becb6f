package transport

type RoomURI struct {
	RoomKey string `uri:"roomKey" binding:"required,roomkey"`
}

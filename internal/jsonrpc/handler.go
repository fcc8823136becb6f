package jsonrpc

import (
	"context"
	"encoding/json"

	"github.com/boardbeam/backend/internal/errors"
	"github.com/boardbeam/backend/internal/log"
)

type handlerImpl[T any] struct {
	methods map[string]MethodHandler[T]
	logger  *log.Logger
}

func NewHandler[T any](logger *log.Logger) Handler[T] {
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &handlerImpl[T]{
		methods: make(map[string]MethodHandler[T]),
		logger:  logger,
	}
}

func (h *handlerImpl[T]) Def(method string, handler MethodHandler[T]) {
	if _, ok := h.methods[method]; ok {
		panic("method already defined: " + method)
	}
	h.methods[method] = handler
}

func (h *handlerImpl[T]) NewConn(stream ObjectStream, v *T) Conn[T] {
	return newConn(stream, v, h.dispatch, h.logger)
}

// dispatch runs the handler of msg and, for requests, sends its reply.
func (h *handlerImpl[T]) dispatch(ctx context.Context, c *connImpl[T], msg *envelope) {
	isRequest := msg.kind() == kindRequest

	handler, ok := h.methods[msg.Method]
	if !ok {
		h.logger.Warn("Method not found",
			log.String("method", msg.Method),
			log.Bool("request", isRequest))
		if isRequest {
			h.send(ctx, c, msg, newErrorResponse(msg.ID, ErrMethodNotFound(msg.Method)))
		}
		return
	}

	result, err := handler(c.mctx, msg.Params)
	if !isRequest {
		if err != nil {
			h.logger.Debug("Notification handler failed",
				log.String("method", msg.Method),
				log.Error(err))
		}
		return
	}

	if err != nil {
		h.send(ctx, c, msg, newErrorResponse(msg.ID, h.toRPCError(msg, err)))
		return
	}
	resp, err := newResult(msg.ID, result)
	if err != nil {
		h.logger.Error("Failed to encode result",
			log.String("method", msg.Method),
			log.Error(err))
		resp = newErrorResponse(msg.ID, ErrInternal("unknown error"))
	}
	h.send(ctx, c, msg, resp)
}

func (h *handlerImpl[T]) toRPCError(msg *envelope, err error) *Error {
	if found, ok := errors.As[*Error](err); ok {
		rpcErr := *found
		h.logger.Info("Request rejected",
			log.String("method", msg.Method),
			log.Int64("code", rpcErr.Code),
			log.String("message", rpcErr.Message))
		return rpcErr
	}
	h.logger.Error("Request failed",
		log.String("method", msg.Method),
		log.Error(err))
	// internal details stay on this side
	return ErrInternal("unknown error")
}

func (h *handlerImpl[T]) send(ctx context.Context, c *connImpl[T], req, resp *envelope) {
	if err := c.write(ctx, resp); err != nil {
		h.logger.Warn("Failed to send reply",
			log.String("method", req.Method),
			log.String("id", string(req.ID)),
			log.Error(err))
	}
}

// DecodeParams unmarshals params without validation, for notifications
// whose payload is plain data.
func DecodeParams[T any](params *json.RawMessage) (T, error) {
	var v T
	if params == nil {
		return v, ErrInvalidParams("params required")
	}
	if err := json.Unmarshal(*params, &v); err != nil {
		return v, ErrInvalidParams(err.Error())
	}
	return v, nil
}

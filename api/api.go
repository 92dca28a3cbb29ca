package api

import (
	"context"
	"errors"
	"time"

	"github.com/MEmshousen/CodeRED2025-404NotFound/utils/response"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	// Course materials may be up to 50MB; leave room for the multipart framing.
	bodyLimit       = 55 * 1024 * 1024
	shutdownTimeout = 10 * time.Second
)

type APIServer struct {
	app           *fiber.App
	listenAddress string
	log           *zap.Logger
}

func NewAPIServer(listenAddress string, log *zap.Logger) *APIServer {
	return &APIServer{
		app: fiber.New(fiber.Config{
			AppName:               "classroom-api",
			BodyLimit:             bodyLimit,
			DisableStartupMessage: true,
			ErrorHandler:          errorHandler(log),
		}),
		listenAddress: listenAddress,
		log:           log,
	}
}

func (s *APIServer) GetEngine() *fiber.App {
	return s.app
}

// Run serves until ctx is done, then drains in-flight requests.
func (s *APIServer) Run(ctx context.Context) error {
	s.log.Info("starting API server", zap.String("address", s.listenAddress))

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.app.Listen(s.listenAddress)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down API server")
	if err := s.app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		return err
	}
	return <-errCh
}

// errorHandler renders errors that escape handlers in the response envelope.
func errorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			switch fe.Code {
			case fiber.StatusNotFound:
				return response.NotFound(c, "Route not found")
			case fiber.StatusMethodNotAllowed:
				return response.Error(c, fe.Code, fe.Message, "METHOD_NOT_ALLOWED")
			case fiber.StatusRequestEntityTooLarge:
				return response.Error(c, fe.Code, "Request body too large", "PAYLOAD_TOO_LARGE")
			}
			if fe.Code < fiber.StatusInternalServerError {
				return response.Error(c, fe.Code, fe.Message, "BAD_REQUEST")
			}
		}

		log.Error("unhandled error",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err))
		return response.InternalServerError(c, "")
	}
}

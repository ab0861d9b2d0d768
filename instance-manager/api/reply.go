package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo"
	"github.com/saascore/saas-cloud/saasproto"
)

type Result struct {
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
	// set for remote command failures
	ExitCode int    `json:"exit_code,omitempty"`
	Stderr   string `json:"stderr,omitempty"`
}

func Msg(msg string) *Result {
	return &Result{Message: msg}
}

func MsgErr(err error) *Result {
	res := &Result{Message: err.Error()}
	var serr *saasproto.Error
	if errors.As(err, &serr) {
		res.Kind = serr.Kind.String()
		res.ExitCode = serr.ExitCode
		res.Stderr = serr.Stderr
	}
	return res
}

// HTTPStatus maps an error kind onto a response code.
func HTTPStatus(err error) int {
	switch saasproto.KindOf(err) {
	case saasproto.ValidationFailure:
		return http.StatusBadRequest
	case saasproto.ResourceExhausted:
		return http.StatusConflict
	case saasproto.RemoteCommandFailure:
		return http.StatusBadGateway
	case saasproto.ReadinessTimeout:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func setReply(c echo.Context, err error, data interface{}) error {
	if err != nil {
		return c.JSON(HTTPStatus(err), MsgErr(err))
	}
	if data == nil {
		return c.JSON(http.StatusOK, Msg("ok"))
	}
	return c.JSON(http.StatusOK, data)
}

func bindErr(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, Msg("Invalid POST data"))
}

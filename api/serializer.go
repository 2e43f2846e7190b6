package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"

	"github.com/Hasinur3813/task-manager-server/domain"
)

// JSONSerializer encodes responses with sonic using encoding/json
// compatible settings. Request bodies are decoded the same way; an empty
// body decodes as an empty object.
type JSONSerializer struct{}

func (JSONSerializer) Serialize(c echo.Context, i any, indent string) error {
	enc := sonic.ConfigStd.NewEncoder(c.Response())
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return enc.Encode(i)
}

func (JSONSerializer) Deserialize(c echo.Context, i any) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return he
		}
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body").SetInternal(err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}

	// Payload types validate themselves; call them directly so their field
	// errors reach the client unchanged.
	if u, ok := i.(json.Unmarshaler); ok {
		err = u.UnmarshalJSON(body)
	} else {
		err = sonic.ConfigStd.Unmarshal(body, i)
	}
	if err != nil {
		var fe *domain.FieldError
		if errors.As(err, &fe) {
			return echo.NewHTTPError(http.StatusBadRequest, fe.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body").SetInternal(err)
	}
	return nil
}

package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	apperrors "github.com/selo-app/selo/internal/platform/errors"
	"github.com/selo-app/selo/internal/platform/errors/i18n"
	"golang.org/x/text/language"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders a domain error with its mapped status and a message
// localized from the Accept-Language header.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var domainErr *apperrors.Error
	if !errors.As(err, &domainErr) {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: errorBody{
			Code:    string(apperrors.CodeUnknown),
			Message: "internal error",
		}})
		return
	}

	catalog := i18n.GetCatalog(resolveLocale(r))
	writeJSON(w, domainErr.Code.HTTPStatus(), errorResponse{Error: errorBody{
		Code:    string(domainErr.Code),
		Message: catalog.Format(string(domainErr.Code), domainErr.Metadata),
	}})
}

// resolveLocale picks the response locale from the Accept-Language header.
func resolveLocale(r *http.Request) string {
	if r == nil {
		return i18n.BaseLocale
	}
	accept := strings.TrimSpace(r.Header.Get("Accept-Language"))
	if accept == "" {
		return i18n.BaseLocale
	}
	tags, _, err := language.ParseAcceptLanguage(accept)
	if err != nil || len(tags) == 0 {
		return i18n.BaseLocale
	}
	return tags[0].String()
}

func decodeJSON(r *http.Request, v any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return apperrors.Wrap(apperrors.CodeRequestInvalid, "decode request body", err)
	}
	return nil
}

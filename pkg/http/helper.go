package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"cowork/pkg/config"
	apperrors "cowork/pkg/errors"
)

// RequesterHeader carries the caller identity resolved by the upstream identity service.
const RequesterHeader = "X-Requester-ID"

func ExtractLimitOffset(r *http.Request) (int, int64, error) {
	query := r.URL.Query()

	limit := 0
	if s := query.Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return 0, 0, apperrors.InvalidInput("invalid limit parameter: " + s)
		}
		limit = v
	}

	var offset int64 = 0
	if s := query.Get("offset"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, 0, apperrors.InvalidInput("invalid offset parameter: " + s)
		}
		offset = v
	}

	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	return limit, offset, nil
}

// RequesterID returns the trusted caller identity or an InvalidInput error when absent.
func RequesterID(r *http.Request) (string, error) {
	id := strings.TrimSpace(r.Header.Get(RequesterHeader))
	if id == "" {
		return "", apperrors.InvalidInput("missing " + RequesterHeader + " header")
	}
	return id, nil
}

// DecodeJSON decodes the request body into v. An empty body is accepted when allowEmpty is set.
func DecodeJSON(r *http.Request, v any, allowEmpty bool) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return apperrors.InvalidInput("Invalid request body: " + err.Error())
	}
	return nil
}

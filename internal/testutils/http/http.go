package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"

	"github.com/labstack/echo/v4"
)

type RequestOption func(req *http.Request) *http.Request

func WithContext(ctx context.Context) RequestOption {
	return func(req *http.Request) *http.Request {
		return req.WithContext(ctx)
	}
}

func WithHeader(key string, value string, values ...string) RequestOption {
	return func(req *http.Request) *http.Request {
		req.Header.Add(key, value)
		for _, v := range values {
			req.Header.Add(key, v)
		}
		return req
	}
}

// = WithHeader("Content-Type", ctyp)
func ContentType(ctyp string) RequestOption {
	return WithHeader("Content-Type", ctyp)
}

// = WithHeader("Authorization", "Bearer "+token)
func Bearer(token string) RequestOption {
	return WithHeader("Authorization", "Bearer "+token)
}

// set path parameters of echo context.
//
// names and values are given in pairs: name, value, name, value, ...
type Params []string

func request(e *echo.Echo, method string, target string, data io.Reader, params Params, reqopts []RequestOption) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, data)
	for _, opt := range reqopts {
		req = opt(req)
	}
	resp := httptest.NewRecorder()

	ctx := e.NewContext(req, resp)
	if len(params) != 0 {
		names, values := []string{}, []string{}
		for i := 0; i+1 < len(params); i += 2 {
			names = append(names, params[i])
			values = append(values, params[i+1])
		}
		ctx.SetParamNames(names...)
		ctx.SetParamValues(values...)
	}
	return ctx, resp
}

func Get(e *echo.Echo, target string, params Params, reqopts ...RequestOption) (echo.Context, *httptest.ResponseRecorder) {
	return request(e, http.MethodGet, target, nil, params, reqopts)
}

func Post(e *echo.Echo, target string, data io.Reader, params Params, reqopts ...RequestOption) (echo.Context, *httptest.ResponseRecorder) {
	return request(e, http.MethodPost, target, data, params, reqopts)
}

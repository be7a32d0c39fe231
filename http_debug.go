package chalkboard

import (
	"net/http"
	"net/http/httputil"
	"os"

	"github.com/rs/zerolog"
)

// debugTransport dumps completion requests and responses to the logger.
// Installed beneath the provider client when debug logging is enabled.
// Dumps include full bodies, so conversation text and bearer tokens end
// up in the logs; never enable this outside development.
type debugTransport struct {
	base http.RoundTripper
	log  zerolog.Logger
}

func (dt *debugTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if reqDump, err := httputil.DumpRequestOut(req, true); err == nil {
		dt.log.Debug().Str("method", req.Method).Str("url", req.URL.String()).
			Str("request_dump", string(reqDump)).Msg("HTTP request")
	}

	resp, err := dt.base.RoundTrip(req)
	if err != nil {
		dt.log.Error().Err(err).Str("method", req.Method).Str("url", req.URL.String()).Msg("HTTP request failed")
		return nil, err
	}

	if respDump, err := httputil.DumpResponse(resp, true); err == nil {
		dt.log.Debug().Str("method", req.Method).Str("url", req.URL.String()).
			Int("status_code", resp.StatusCode).Str("response_dump", string(respDump)).Msg("HTTP response")
	}
	return resp, nil
}

// debugLoggingRequested reports whether debug logging was requested via
// the environment: CHALKBOARD_DEBUG=true or the generic DEBUG=true.
func debugLoggingRequested() bool {
	return os.Getenv("CHALKBOARD_DEBUG") == "true" || os.Getenv("DEBUG") == "true"
}

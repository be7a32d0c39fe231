package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	cerrors "github.com/chalkboard-ai/chalkboard/internal/errors"
)

// HTTPProvider fetches identities from a randomuser.me-compatible API.
type HTTPProvider struct {
	http *resty.Client
	url  string
	log  zerolog.Logger
}

// NewHTTPProvider builds a provider against the given endpoint.
func NewHTTPProvider(url string, timeout time.Duration, log zerolog.Logger) *HTTPProvider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPProvider{
		http: resty.New().SetTimeout(timeout),
		url:  url,
		log:  log,
	}
}

type randomUserResponse struct {
	Results []struct {
		Name struct {
			First string `json:"first"`
			Last  string `json:"last"`
		} `json:"name"`
		Picture struct {
			Large string `json:"large"`
		} `json:"picture"`
	} `json:"results"`
}

// Random fetches one identity, retrying transient failures briefly.
func (p *HTTPProvider) Random(ctx context.Context) (Identity, error) {
	var id Identity

	op := func() error {
		resp, err := p.http.R().SetContext(ctx).Get(p.url)
		if err != nil {
			return cerrors.NewNetworkError("identity", err)
		}
		if resp.StatusCode() != http.StatusOK {
			herr := cerrors.NewHTTPError(resp.StatusCode(), resp.String(), "identity")
			if cerrors.IsIrrecoverable(herr) {
				return backoff.Permanent(herr)
			}
			return herr
		}

		var body randomUserResponse
		if err := json.Unmarshal(resp.Body(), &body); err != nil {
			return backoff.Permanent(fmt.Errorf("decode identity response: %w", err))
		}
		if len(body.Results) == 0 {
			return backoff.Permanent(fmt.Errorf("identity response had no results"))
		}

		r := body.Results[0]
		id = Identity{
			Name:    r.Name.First + " " + r.Name.Last,
			LogoURL: r.Picture.Large,
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = 5 * time.Second
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		p.log.Warn().Err(err).Msg("identity fetch failed")
		return Identity{}, err
	}
	return id, nil
}

// LocalProvider cycles through a small fixed roster. It never fails, which
// makes it the usual secondary in a Fallback chain and the default in tests.
type LocalProvider struct {
	next atomic.Uint64
}

// NewLocalProvider returns an offline identity source.
func NewLocalProvider() *LocalProvider { return &LocalProvider{} }

var localRoster = []Identity{
	{Name: "Ada Lovelace"},
	{Name: "Alan Turing"},
	{Name: "Grace Hopper"},
	{Name: "Claude Shannon"},
	{Name: "Barbara Liskov"},
	{Name: "Edsger Dijkstra"},
}

func (p *LocalProvider) Random(_ context.Context) (Identity, error) {
	n := p.next.Add(1) - 1
	return localRoster[n%uint64(len(localRoster))], nil
}

package platforms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/jonesrussell/socialgrab/internal/fetch"
	"github.com/jonesrussell/socialgrab/internal/scraperr"
)

// fetchPage performs a decorated GET and returns the body together with the
// final post-redirect URL. Status classification is left to the caller: some
// strategies still want the body of a non-2xx response.
func fetchPage(ctx context.Context, client *http.Client, rawURL string, opts Options, accept string) ([]byte, *url.URL, int, *scraperr.Error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, 0, scraperr.Wrap(scraperr.CodeInvalidURL, err)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	fetch.Decorate(req, opts.Profile, opts.Cookie)

	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, 0, scraperr.FromTransport(err)
	}
	finalURL := resp.Request.URL

	body, readErr := fetch.ReadBody(resp)
	if readErr != nil {
		return nil, finalURL, resp.StatusCode, scraperr.FromTransport(readErr)
	}
	return body, finalURL, resp.StatusCode, nil
}

// fetchJSON performs a decorated GET against a JSON endpoint and decodes the
// envelope into out. Non-2xx statuses are classified before decoding.
func fetchJSON(ctx context.Context, client *http.Client, rawURL string, opts Options, out any) *scraperr.Error {
	body, _, status, err := fetchPage(ctx, client, rawURL, opts, "application/json")
	if err != nil {
		return err
	}
	if statusErr := classifyStatus(status); statusErr != nil {
		return statusErr
	}
	if jsonErr := json.Unmarshal(body, out); jsonErr != nil {
		return scraperr.Wrap(scraperr.CodeParseError, jsonErr)
	}
	return nil
}

// unmarshalInto decodes a JSON body, typing any failure as PARSE_ERROR.
func unmarshalInto(body []byte, out any) *scraperr.Error {
	if err := json.Unmarshal(body, out); err != nil {
		return scraperr.Wrap(scraperr.CodeParseError, err)
	}
	return nil
}

// decodeLoose decodes a dynamically-shaped JSON fragment into a typed struct.
// Platform responses move fields between objects and flip numbers to strings
// across rollouts; weak typing absorbs that without a parser rewrite. Structs
// are matched on their json tags.
func decodeLoose(in, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("build decoder: %w", err)
	}
	if err := dec.Decode(in); err != nil {
		return fmt.Errorf("decode fragment: %w", err)
	}
	return nil
}

// digMap walks nested map keys and returns the object at the end of the
// path, or nil when any step is missing.
func digMap(root map[string]any, path ...string) map[string]any {
	cur := root
	for _, key := range path {
		next, ok := cur[key].(map[string]any)
		if !ok {
			return nil
		}
		cur = next
	}
	return cur
}

// unescapeJSONString decodes a string captured out of inline page JSON,
// resolving \/ and \uXXXX escapes.
func unescapeJSONString(s string) string {
	var out string
	if err := json.Unmarshal([]byte(`"`+s+`"`), &out); err != nil {
		return strings.ReplaceAll(s, `\/`, `/`)
	}
	return out
}

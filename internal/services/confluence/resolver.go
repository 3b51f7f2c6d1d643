package confluence

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dossier/internal/common"
	"github.com/ternarybob/dossier/internal/interfaces"
	"github.com/ternarybob/dossier/internal/models"
)

const (
	scanPageSize     = 100
	scanMaxPages     = 5
	cqlSearchLimit   = 200
	metadataScanSize = 50
)

// resolveStrategy maps a wiki URL to a page id. ok is false when the strategy
// does not apply or found nothing.
type resolveStrategy struct {
	name    string
	resolve func(ctx context.Context, pageURL string) (id string, ok bool)
}

// Resolver maps short and long wiki links to canonical page ids
type Resolver struct {
	wiki       interfaces.WikiService
	known      map[string]string
	strategies []resolveStrategy
	logger     arbor.ILogger
}

var _ interfaces.PageResolver = (*Resolver)(nil)

// NewResolver creates a resolver. known maps short-link tokens to page ids
// and is consulted after every remote lookup failed.
func NewResolver(wiki interfaces.WikiService, known map[string]string, logger arbor.ILogger) *Resolver {
	r := &Resolver{
		wiki:   wiki,
		known:  known,
		logger: logger,
	}
	r.strategies = []resolveStrategy{
		{name: "tiny-as-id", resolve: r.tinyAsID},
		{name: "paginated-scan", resolve: r.paginatedScan},
		{name: "cql-search", resolve: r.cqlSearch},
		{name: "metadata-scan", resolve: r.metadataScan},
		{name: "known-mappings", resolve: r.knownMapping},
		{name: "direct-id", resolve: directID},
	}
	return r
}

// Resolve returns the page id of pageURL, trying each strategy in order.
// Without credentials only the offline rules apply: the short-link token is
// taken as the id, and /pages/ID links are read directly.
func (r *Resolver) Resolve(ctx context.Context, pageURL string) (string, error) {
	if !r.wiki.HasCredentials() {
		r.logger.Warn().Str("url", pageURL).Msg("Confluence credentials not configured - using offline page id resolution")
		if token, ok := common.ShortLinkToken(pageURL); ok {
			return token, nil
		}
		if id, ok := common.PageIDFromURL(pageURL); ok {
			return id, nil
		}
		return "", &ResolutionError{URL: pageURL, Strategies: []string{"offline"}}
	}

	tried := make([]string, 0, len(r.strategies))
	for _, s := range r.strategies {
		if ctx.Err() != nil {
			break
		}
		tried = append(tried, s.name)
		if id, ok := s.resolve(ctx, pageURL); ok {
			r.logger.Info().
				Str("url", pageURL).
				Str("strategy", s.name).
				Str("page_id", id).
				Msg("Resolved wiki page id")
			return id, nil
		}
	}

	return "", &ResolutionError{URL: pageURL, Strategies: tried}
}

func (r *Resolver) tinyAsID(ctx context.Context, pageURL string) (string, bool) {
	token, ok := common.ShortLinkToken(pageURL)
	if !ok {
		return "", false
	}
	exists, err := r.wiki.PageExists(ctx, token)
	if err != nil {
		r.logger.Debug().Err(err).Str("token", token).Msg("Short-link lookup failed")
		return "", false
	}
	return token, exists
}

func (r *Resolver) paginatedScan(ctx context.Context, pageURL string) (string, bool) {
	token, ok := common.ShortLinkToken(pageURL)
	if !ok {
		return "", false
	}

	start := 0
	for page := 0; page < scanMaxPages; page++ {
		results, err := r.wiki.ListPages(ctx, start, scanPageSize, "_links")
		if err != nil {
			r.logger.Debug().Err(err).Int("start", start).Msg("Page listing stopped")
			return "", false
		}
		if len(results) == 0 {
			return "", false
		}
		if id, found := matchTinyUI(results, token); found {
			return id, true
		}
		start += scanPageSize
	}
	return "", false
}

func (r *Resolver) cqlSearch(ctx context.Context, pageURL string) (string, bool) {
	token, ok := common.ShortLinkToken(pageURL)
	if !ok {
		return "", false
	}
	results, err := r.wiki.SearchPages(ctx, "type=page", cqlSearchLimit, "_links")
	if err != nil {
		r.logger.Debug().Err(err).Msg("CQL search failed")
		return "", false
	}
	return matchTinyUI(results, token)
}

func (r *Resolver) metadataScan(ctx context.Context, pageURL string) (string, bool) {
	token, ok := common.ShortLinkToken(pageURL)
	if !ok {
		return "", false
	}
	results, err := r.wiki.ListPages(ctx, 0, metadataScanSize, "metadata,space")
	if err != nil {
		r.logger.Debug().Err(err).Msg("Metadata listing failed")
		return "", false
	}
	for _, c := range results {
		if containsToken(c.Links, token) || containsToken(c.Metadata, token) {
			return c.ID, true
		}
	}
	return "", false
}

func (r *Resolver) knownMapping(_ context.Context, pageURL string) (string, bool) {
	token, ok := common.ShortLinkToken(pageURL)
	if !ok {
		return "", false
	}
	id, found := r.known[token]
	return id, found
}

func directID(_ context.Context, pageURL string) (string, bool) {
	return common.PageIDFromURL(pageURL)
}

func matchTinyUI(results []models.WikiContent, token string) (string, bool) {
	needle := "/x/" + token
	for _, c := range results {
		if strings.Contains(c.TinyUI(), needle) {
			return c.ID, true
		}
	}
	return "", false
}

func containsToken(fields map[string]interface{}, token string) bool {
	if len(fields) == 0 {
		return false
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return false
	}
	return strings.Contains(string(raw), token)
}

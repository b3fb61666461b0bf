// Package i18n loads translation maps for the session texts. A failed
// load is the one collaborator error surfaced to the user: the session
// flags it and falls back to the previous language.
package i18n

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/sentinela-dev/sentinela/internal/watch"
)

// Dispatcher enqueues events for the session loop.
type Dispatcher interface {
	Dispatch(ev watch.Event) error
}

// Loader fetches translations keyed by language code and drives the
// language-load event sequence. It doubles as an engine reactor
// following language switches.
type Loader struct {
	baseURL  string
	client   *http.Client
	dispatch Dispatcher
}

// NewLoader creates a loader against the translation endpoint base
// URL.
func NewLoader(baseURL string, d Dispatcher) *Loader {
	return &Loader{
		baseURL:  baseURL,
		client:   &http.Client{Timeout: 15 * time.Second},
		dispatch: d,
	}
}

func (l *Loader) Name() string { return "i18n-loader" }

// React fetches the new language's texts whenever the session language
// changes.
func (l *Loader) React(ctx context.Context, prev, next watch.State) {
	if next.CurrentLanguage == prev.CurrentLanguage {
		return
	}
	go l.Load(ctx, next.CurrentLanguage)
}

// Load fetches one language and dispatches the outcome.
func (l *Loader) Load(ctx context.Context, lang string) {
	l.send(watch.LanguageLoadStart{})

	texts, err := l.fetch(ctx, lang)
	if err != nil {
		log.Printf("i18n: load %s: %v", lang, err)
		l.send(watch.LanguageLoadError{Err: err.Error()})
		return
	}
	l.send(watch.LanguageLoadSuccess{Texts: texts})
}

func (l *Loader) fetch(ctx context.Context, lang string) (map[string]string, error) {
	url := fmt.Sprintf("%s/translations/%s", l.baseURL, lang)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch translations: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch translations: status %d", resp.StatusCode)
	}

	var body struct {
		Translations map[string]string `json:"translations"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode translations: %w", err)
	}
	return body.Translations, nil
}

func (l *Loader) send(ev watch.Event) {
	if err := l.dispatch.Dispatch(ev); err != nil {
		log.Printf("i18n: dispatch: %v", err)
	}
}

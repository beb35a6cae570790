package wiki

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"
)

const roboticsHTML = `<div class="mw-parser-output">` +
	`<div class="hatnote">See also <a href="/wiki/Hat_Link" title="Hat Link">x</a></div>` +
	`<p class="mw-empty-elt"></p>` +
	`<p><b>Robotics</b> is the <a href="/wiki/Engineering" title="Engineering">engineering</a> of <a href="/wiki/Robot" title="Robot">robots</a>.<sup class="reference"><a href="#cite_note-1">[1]</a></sup></p>` +
	`<p>It uses <a href="/wiki/Engineering" title="Engineering">engineering</a> and <a href="/wiki/File:Arm.jpg" title="File:Arm.jpg">img</a>.</p>` +
	`<div class="mw-heading mw-heading2"><h2 id="History">History</h2></div>` +
	`<p>Early <a href="/wiki/Automaton" title="Automaton">automata</a> and <a href="/w/index.php?title=Missing&amp;redlink=1" class="new" title="Missing (page does not exist)">missing</a>.</p>` +
	`<div class="navbox"><a href="/wiki/Nav_Topic" title="Nav Topic">nav</a></div>` +
	`</div>`

func parsePayload(title, html string, props map[string]string) []byte {
	payload := map[string]any{
		"parse": map[string]any{
			"title": title,
			"text":  html,
			"categories": []map[string]any{
				{"category": "Robotics_engineering"},
				{"category": "Articles_with_short_description", "hidden": true},
				{"category": "Automation"},
			},
			"sections": []map[string]any{
				{"line": "History"},
				{"line": "<i>Robot</i> types"},
			},
			"properties": props,
		},
	}
	b, _ := json.Marshal(payload)
	return b
}

func errorPayload(code string) []byte {
	b, _ := json.Marshal(map[string]any{"error": map[string]any{"code": code, "info": "boom"}})
	return b
}

func TestParseResponse(t *testing.T) {
	data, err := parseResponse("robotics", parsePayload("Robotics", roboticsHTML, map[string]string{}), "https://en.wikipedia.org/wiki/")
	if err != nil {
		t.Fatalf("parseResponse() error: %v", err)
	}

	if data.Title != "Robotics" {
		t.Errorf("Title = %q, want Robotics", data.Title)
	}
	if data.URL != "https://en.wikipedia.org/wiki/Robotics" {
		t.Errorf("URL = %q", data.URL)
	}

	wantSummary := "Robotics is the engineering of robots.\nIt uses engineering and img."
	if data.Summary != wantSummary {
		t.Errorf("Summary = %q, want %q", data.Summary, wantSummary)
	}

	wantLinks := []string{"Engineering", "Robot", "Engineering", "Automaton"}
	if !reflect.DeepEqual(data.Links, wantLinks) {
		t.Errorf("Links = %v, want %v", data.Links, wantLinks)
	}

	wantCategories := []string{"Robotics engineering", "Automation"}
	if !reflect.DeepEqual(data.Categories, wantCategories) {
		t.Errorf("Categories = %v, want %v", data.Categories, wantCategories)
	}

	wantSections := []string{"History", "Robot types"}
	if !reflect.DeepEqual(data.Sections, wantSections) {
		t.Errorf("Sections = %v, want %v", data.Sections, wantSections)
	}

	if data.WordCount == 0 {
		t.Error("WordCount = 0, want > 0")
	}
}

func TestParseResponseErrors(t *testing.T) {
	tests := []struct {
		name string
		body []byte
		want error
	}{
		{"missing title", errorPayload("missingtitle"), ErrNotFound},
		{"invalid title", errorPayload("invalidtitle"), ErrNotFound},
		{"rate limited", errorPayload("ratelimited"), ErrTransient},
		{"disambiguation", parsePayload("Mercury", "<p>x</p>", map[string]string{"disambiguation": ""}), ErrDisambiguation},
		{"garbage", []byte("<html>"), ErrTransient},
		{"empty parse", []byte(`{"parse":{}}`), ErrTransient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseResponse("X", tt.body, "https://en.wikipedia.org/wiki/")
			if !errors.Is(err, tt.want) {
				t.Fatalf("parseResponse() error = %v, want %v", err, tt.want)
			}
			var fe *FetchError
			if !errors.As(err, &fe) || fe.Title != "X" {
				t.Errorf("expected *FetchError for title X, got %v", err)
			}
		})
	}
}

func TestIsNonArticle(t *testing.T) {
	tests := map[string]bool{
		"File:Arm.jpg":              true,
		"Category:Robotics":         true,
		"Template talk:Infobox":     true,
		"Star Wars: A New Hope":     false,
		"Robotics":                  false,
		":Leading colon":            false,
		"Wikipedia:Manual of Style": true,
	}
	for title, want := range tests {
		if got := isNonArticle(title); got != want {
			t.Errorf("isNonArticle(%q) = %v, want %v", title, got, want)
		}
	}
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("page") {
		case "Robotics":
			w.Write(parsePayload("Robotics", roboticsHTML, nil))
		case "Robot arm":
			// redirect resolved by the API
			w.Write(parsePayload("Robotic arm", "<p>An arm.</p>", nil))
		case "Mercury":
			w.Write(parsePayload("Mercury", "<p>May refer to</p>", map[string]string{"disambiguation": ""}))
		case "Flaky":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.Write(errorPayload("missingtitle"))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClientFetch(t *testing.T) {
	srv := newTestServer(t)
	client, err := NewClient(Options{APIURL: srv.URL + "/w/api.php", Timeout: 5 * time.Second, Parallelism: 2})
	if err != nil {
		t.Fatalf("NewClient() error: %v", err)
	}
	ctx := context.Background()

	data, err := client.Fetch(ctx, "Robotics")
	if err != nil {
		t.Fatalf("Fetch(Robotics) error: %v", err)
	}
	if data.Title != "Robotics" || len(data.Links) != 4 {
		t.Errorf("Fetch(Robotics) = %+v", data)
	}
	if data.URL != srv.URL+"/wiki/Robotics" {
		t.Errorf("URL = %q", data.URL)
	}

	data, err = client.Fetch(ctx, "Robot arm")
	if err != nil {
		t.Fatalf("Fetch(Robot arm) error: %v", err)
	}
	if data.Title != "Robotic arm" {
		t.Errorf("canonical title = %q, want Robotic arm", data.Title)
	}

	// Same title twice must hit the server again
	if _, err := client.Fetch(ctx, "Robotics"); err != nil {
		t.Errorf("second Fetch(Robotics) error: %v", err)
	}

	if _, err := client.Fetch(ctx, "Nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Fetch(Nope) error = %v, want ErrNotFound", err)
	}
	if _, err := client.Fetch(ctx, "Mercury"); !errors.Is(err, ErrDisambiguation) {
		t.Errorf("Fetch(Mercury) error = %v, want ErrDisambiguation", err)
	}
	if _, err := client.Fetch(ctx, "Flaky"); !IsTransient(err) {
		t.Errorf("Fetch(Flaky) error = %v, want transient", err)
	}
}

func TestClientFetchCanceled(t *testing.T) {
	srv := newTestServer(t)
	client, err := NewClient(Options{APIURL: srv.URL + "/w/api.php"})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := client.Fetch(ctx, "Robotics"); !errors.Is(err, context.Canceled) {
		t.Errorf("Fetch() error = %v, want context.Canceled", err)
	}
}

func TestNewClientRejectsBadURL(t *testing.T) {
	if _, err := NewClient(Options{APIURL: "not a url"}); err == nil {
		t.Error("expected error for api url without scheme")
	}
}

func TestReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&FetchError{Title: "x", Kind: ErrNotFound}, "not_found"},
		{&FetchError{Title: "x", Kind: ErrDisambiguation}, "disambiguation"},
		{&FetchError{Title: "x", Kind: ErrTransient, Err: errors.New("eof")}, "transient"},
		{context.Canceled, "canceled"},
		{errors.New("other"), "error"},
	}
	for _, tt := range tests {
		if got := Reason(tt.err); got != tt.want {
			t.Errorf("Reason(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

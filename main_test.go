package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"lexis/internal/analysis"
	"lexis/internal/export"
	"lexis/internal/loader"
	"lexis/internal/profile"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, metrics bool) (*apiServer, http.Handler) {
	t.Helper()
	registry, err := profile.NewRegistryWithDefaults(t.TempDir())
	if err != nil {
		t.Fatalf("init registry: %v", err)
	}
	logger := discardLogger()
	server := newAPIServer(registry, profile.Standard, newTelemetry(context.Background(), logger, metrics), logger)
	return server, server.routes(false)
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

type analyzeResponse struct {
	Profile string           `json:"profile"`
	Tokens  []analysis.Token `json:"tokens"`
	Count   int              `json:"count"`
}

func TestAnalyzeEndpointClassifiesTokens(t *testing.T) {
	_, handler := newTestServer(t, false)

	rec := doJSON(t, handler, http.MethodPost, "/v1/analyze", `{"text":"John's cat"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp analyzeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Profile != profile.Standard || resp.Count != 2 {
		t.Fatalf("unexpected response %+v", resp)
	}
	want := []analysis.Token{
		{Text: "john", Type: analysis.TokenPossessive},
		{Text: "cat", Type: analysis.TokenTerm},
	}
	for i, tok := range want {
		if resp.Tokens[i] != tok {
			t.Fatalf("token %d: expected %+v got %+v", i, tok, resp.Tokens[i])
		}
	}
}

func TestAnalyzeEndpointWithEnglishProfile(t *testing.T) {
	server, handler := newTestServer(t, false)

	rec := doJSON(t, handler, http.MethodPost, "/v1/analyze", `{"text":"The cats are running","profile":"english"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp analyzeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got := analysis.Texts(resp.Tokens); strings.Join(got, " ") != "cat run" {
		t.Fatalf("expected [cat run], got %v", got)
	}

	def, _ := server.registry.Get(profile.English)
	if def.Metadata.Documents != 1 || def.Metadata.Tokens != 2 {
		t.Fatalf("expected usage to be recorded, got %+v", def.Metadata)
	}
}

func TestAnalyzeEndpointErrors(t *testing.T) {
	_, handler := newTestServer(t, false)

	if rec := doJSON(t, handler, http.MethodPost, "/v1/analyze", `{"text":"x","profile":"missing"}`); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown profile, got %d", rec.Code)
	}
	if rec := doJSON(t, handler, http.MethodPost, "/v1/analyze", `{`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad json, got %d", rec.Code)
	}
	if rec := doJSON(t, handler, http.MethodGet, "/v1/analyze", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestProfileLifecycle(t *testing.T) {
	_, handler := newTestServer(t, false)

	body := `{"name":"short","filters":[{"type":"length","min":2,"max":4}]}`
	rec := doJSON(t, handler, http.MethodPost, "/v1/profiles", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	if rec := doJSON(t, handler, http.MethodPost, "/v1/profiles", body); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate, got %d", rec.Code)
	}
	if rec := doJSON(t, handler, http.MethodPost, "/v1/profiles", `{"name":"bad","filters":[{"type":"soundex"}]}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown filter, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/v1/profiles/short", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var def profile.Definition
	if err := json.Unmarshal(rec.Body.Bytes(), &def); err != nil {
		t.Fatalf("decode definition: %v", err)
	}
	if len(def.Filters) != 1 || def.Filters[0].Max != 4 {
		t.Fatalf("unexpected definition %+v", def)
	}

	if rec := doJSON(t, handler, http.MethodGet, "/v1/profiles/nope", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/v1/profiles", "")
	var list struct {
		Profiles []profile.Definition `json:"profiles"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Profiles) != 3 {
		t.Fatalf("expected builtins plus created profile, got %d", len(list.Profiles))
	}

	rec = doJSON(t, handler, http.MethodPost, "/v1/analyze", `{"text":"a cat is sleeping","profile":"short"}`)
	var resp analyzeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got := strings.Join(analysis.Texts(resp.Tokens), " "); got != "cat is" {
		t.Fatalf("expected length filter to keep [cat is], got %q", got)
	}
}

func TestHealthAndReadiness(t *testing.T) {
	_, handler := newTestServer(t, false)

	if rec := doJSON(t, handler, http.MethodGet, "/v1/health", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected healthy, got %d", rec.Code)
	}

	rec := doJSON(t, handler, http.MethodGet, "/v1/ready", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected ready, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ready"`) {
		t.Fatalf("unexpected readiness payload %s", rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("expected json content type, got %q", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, handler := newTestServer(t, true)

	doJSON(t, handler, http.MethodPost, "/v1/analyze", `{"text":"hello world"}`)

	rec := doJSON(t, handler, http.MethodGet, "/v1/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "lexis_profiles 2") {
		t.Fatalf("expected profile gauge in metrics output")
	}

	_, disabled := newTestServer(t, false)
	if rec := doJSON(t, disabled, http.MethodGet, "/v1/metrics", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected metrics route to be absent when disabled, got %d", rec.Code)
	}
}

func TestRunBatchPreservesOrderAndExports(t *testing.T) {
	registry, err := profile.NewRegistryWithDefaults(t.TempDir())
	if err != nil {
		t.Fatalf("init registry: %v", err)
	}

	var out bytes.Buffer
	p, err := newPipeline(registry, profile.English, &out, discardLogger())
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	exportLog, _, err := export.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open export log: %v", err)
	}
	defer exportLog.Close()
	p.exportLog = exportLog

	docs := []loader.Document{
		{ID: "1", Name: "a.txt", Content: "The foxes are jumping"},
		{ID: "2", Name: "b.txt", Content: "the of and"},
		{ID: "3", Name: "c.txt", Content: "R.D.C. and John's cats"},
	}

	total, err := p.runBatch(context.Background(), docs, 3)
	if err != nil {
		t.Fatalf("run batch: %v", err)
	}
	if total != 5 {
		t.Fatalf("expected 5 tokens in total, got %d", total)
	}

	var records []export.Record
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		var record export.Record
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			t.Fatalf("decode line: %v", err)
		}
		records = append(records, record)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	for i, doc := range docs {
		if records[i].DocumentID != doc.ID {
			t.Fatalf("record %d out of order: %s", i, records[i].DocumentID)
		}
	}
	if got := strings.Join(analysis.Texts(records[0].Tokens), " "); got != "fox jump" {
		t.Fatalf("unexpected tokens for a.txt: %q", got)
	}
	if records[1].Tokens == nil || len(records[1].Tokens) != 0 {
		t.Fatalf("expected empty token list for stopword-only document, got %v", records[1].Tokens)
	}
	if got := strings.Join(analysis.Texts(records[2].Tokens), " "); got != "rdc john cat" {
		t.Fatalf("unexpected tokens for c.txt: %q", got)
	}

	replayed, _, err := exportLog.Recover(0)
	if err != nil {
		t.Fatalf("recover export log: %v", err)
	}
	if len(replayed) != 3 || replayed[2].DocumentName != "c.txt" {
		t.Fatalf("unexpected export log contents: %+v", replayed)
	}

	def, _ := registry.Get(profile.English)
	if def.Metadata.Documents != 3 || def.Metadata.Tokens != 5 {
		t.Fatalf("expected usage to be recorded, got %+v", def.Metadata)
	}
}

func TestAnalyzeCommand(t *testing.T) {
	corpus := t.TempDir()
	if err := os.WriteFile(filepath.Join(corpus, "one.txt"), []byte("Running dogs"), 0o644); err != nil {
		t.Fatalf("write corpus: %v", err)
	}
	if err := os.WriteFile(filepath.Join(corpus, "two.txt"), []byte("U.S.A. is big"), 0o644); err != nil {
		t.Fatalf("write corpus: %v", err)
	}
	if err := os.WriteFile(filepath.Join(corpus, "skip.csv"), []byte("a,b"), 0o644); err != nil {
		t.Fatalf("write corpus: %v", err)
	}
	t.Setenv("LEXIS_PROFILE_DIR", t.TempDir())
	outDir := t.TempDir()

	var out bytes.Buffer
	root := newRootCmd(io.Discard)
	root.SetOut(&out)
	root.SetArgs([]string{"analyze", "--profile", "english", "--output", outDir, corpus})
	if err := root.Execute(); err != nil {
		t.Fatalf("analyze command: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected one line per supported document, got %q", out.String())
	}
	var first export.Record
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("decode first record: %v", err)
	}
	if first.DocumentName != "one.txt" || strings.Join(analysis.Texts(first.Tokens), " ") != "run dog" {
		t.Fatalf("unexpected first record %+v", first)
	}

	if _, err := os.Stat(filepath.Join(outDir, "tokens.log")); err != nil {
		t.Fatalf("expected export log to be written: %v", err)
	}
}

func TestAnalyzeCommandUnknownProfile(t *testing.T) {
	corpus := t.TempDir()
	if err := os.WriteFile(filepath.Join(corpus, "one.txt"), []byte("text"), 0o644); err != nil {
		t.Fatalf("write corpus: %v", err)
	}
	t.Setenv("LEXIS_PROFILE_DIR", t.TempDir())

	root := newRootCmd(io.Discard)
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"analyze", "--profile", "missing", corpus})
	if err := root.Execute(); err == nil {
		t.Fatalf("expected unknown profile to fail")
	}
}

func TestReplayCommandPrintsExportedRecords(t *testing.T) {
	corpus := t.TempDir()
	for name, content := range map[string]string{"a.txt": "Foxes jump", "b.txt": "John's cat"} {
		if err := os.WriteFile(filepath.Join(corpus, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write corpus: %v", err)
		}
	}
	t.Setenv("LEXIS_PROFILE_DIR", t.TempDir())
	outDir := t.TempDir()

	var analyzed bytes.Buffer
	root := newRootCmd(io.Discard)
	root.SetOut(&analyzed)
	root.SetArgs([]string{"analyze", "--output", outDir, corpus})
	if err := root.Execute(); err != nil {
		t.Fatalf("analyze command: %v", err)
	}

	var replayed bytes.Buffer
	root = newRootCmd(io.Discard)
	root.SetOut(&replayed)
	root.SetArgs([]string{"replay", outDir})
	if err := root.Execute(); err != nil {
		t.Fatalf("replay command: %v", err)
	}
	if replayed.String() != analyzed.String() {
		t.Fatalf("replay should reproduce the analyzed records\nwant %q\ngot  %q", analyzed.String(), replayed.String())
	}

	info, err := os.Stat(filepath.Join(outDir, "tokens.log"))
	if err != nil {
		t.Fatalf("stat export log: %v", err)
	}
	var tail bytes.Buffer
	root = newRootCmd(io.Discard)
	root.SetOut(&tail)
	root.SetArgs([]string{"replay", "--from", strconv.FormatInt(info.Size(), 10), outDir})
	if err := root.Execute(); err != nil {
		t.Fatalf("replay from end: %v", err)
	}
	if tail.Len() != 0 {
		t.Fatalf("expected nothing past the end of the log, got %q", tail.String())
	}
}

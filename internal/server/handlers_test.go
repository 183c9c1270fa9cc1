package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/textveil/textveil/internal/config"
	"github.com/textveil/textveil/internal/history"
	"github.com/textveil/textveil/internal/logger"
	"github.com/textveil/textveil/internal/masking"
	"github.com/textveil/textveil/internal/rules"
	"github.com/textveil/textveil/internal/transform"
)

type fakeRuleStore struct {
	rules     []masking.Rule
	createErr error
}

func (f *fakeRuleStore) List(ctx context.Context) ([]masking.Rule, error) {
	return f.rules, nil
}

func (f *fakeRuleStore) Create(ctx context.Context, rule masking.Rule) (masking.Rule, error) {
	if f.createErr != nil {
		return masking.Rule{}, f.createErr
	}
	rule.ID = "generated"
	f.rules = append(f.rules, rule)
	return rule, nil
}

func (f *fakeRuleStore) Update(ctx context.Context, rule masking.Rule) error {
	for i := range f.rules {
		if f.rules[i].ID == rule.ID {
			f.rules[i] = rule
			return nil
		}
	}
	return rules.ErrNotFound
}

func (f *fakeRuleStore) Delete(ctx context.Context, id string) error {
	for i := range f.rules {
		if f.rules[i].ID == id {
			f.rules = append(f.rules[:i], f.rules[i+1:]...)
			return nil
		}
	}
	return rules.ErrNotFound
}

type fakeHistoryStore struct {
	records []history.Record
}

func (f *fakeHistoryStore) List(ctx context.Context, limit int) ([]history.Record, error) {
	return f.records, nil
}

func newTestServer(t *testing.T, deps Deps) *Server {
	t.Helper()

	cfg := config.GetDefaults()
	cfg.Server.RateLimit.Enabled = false

	engine := masking.NewEngine(zap.NewNop())
	pipeline := transform.NewPipeline(engine, zap.NewNop())

	return New(cfg, &logger.Logger{Logger: zap.NewNop()}, engine, pipeline, deps)
}

func doJSON(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestHandleAnonymize(t *testing.T) {
	store := &fakeRuleStore{rules: []masking.Rule{
		{ID: "r1", Original: "Acme Corp", Masked: "CompanyA", Kind: masking.CategoryCompany, Enabled: true},
	}}
	s := newTestServer(t, Deps{Rules: store})

	t.Run("store rules applied", func(t *testing.T) {
		rec := doJSON(t, s, "POST", "/v1/anonymize", `{"text":"Acme Corp ships widgets"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}

		var result masking.Result
		if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
			t.Fatalf("unmarshal response: %v", err)
		}
		if result.MaskedText != "CompanyA ships widgets" {
			t.Errorf("maskedText = %q", result.MaskedText)
		}
		if len(result.Mappings) != 1 {
			t.Fatalf("mappings = %d, want 1", len(result.Mappings))
		}
	})

	t.Run("inline rules override store", func(t *testing.T) {
		rec := doJSON(t, s, "POST", "/v1/anonymize",
			`{"text":"Acme Corp ships widgets","rules":[{"original":"widgets","masked":"things","kind":"other","isEnabled":true}]}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}

		var result masking.Result
		if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
			t.Fatalf("unmarshal response: %v", err)
		}
		if strings.Contains(result.MaskedText, "CompanyA") {
			t.Errorf("store rule leaked into inline run: %q", result.MaskedText)
		}
		if !strings.Contains(result.MaskedText, "things") {
			t.Errorf("inline rule not applied: %q", result.MaskedText)
		}
	})

	t.Run("detection uses defaults", func(t *testing.T) {
		rec := doJSON(t, s, "POST", "/v1/anonymize", `{"text":"mail john@example.com","rules":[]}`)
		var result masking.Result
		if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
			t.Fatalf("unmarshal response: %v", err)
		}
		if result.MaskedText != "mail Email(1)" {
			t.Errorf("maskedText = %q", result.MaskedText)
		}
	})

	t.Run("invalid body", func(t *testing.T) {
		rec := doJSON(t, s, "POST", "/v1/anonymize", `{`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestHandleRestore(t *testing.T) {
	s := newTestServer(t, Deps{Rules: &fakeRuleStore{}})

	rec := doJSON(t, s, "POST", "/v1/restore",
		`{"text":"mail Email(1)","mappings":[{"original":"john@example.com","masked":"Email(1)","kind":"email"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp["text"] != "mail john@example.com" {
		t.Errorf("text = %q", resp["text"])
	}
}

func TestHandleTransform(t *testing.T) {
	s := newTestServer(t, Deps{Rules: &fakeRuleStore{}})

	t.Run("pipeline", func(t *testing.T) {
		rec := doJSON(t, s, "POST", "/v1/transform",
			`{"text":"Hello World","presets":["lowercase","base64Encode"]}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
		}

		var resp transformResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshal response: %v", err)
		}
		if resp.OutputText != "aGVsbG8gd29ybGQ=" {
			t.Errorf("outputText = %q", resp.OutputText)
		}
	})

	t.Run("invalid base64 input maps to 400", func(t *testing.T) {
		rec := doJSON(t, s, "POST", "/v1/transform",
			`{"text":"%%%","presets":["base64Decode"]}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("qr decode without image maps to 400", func(t *testing.T) {
		rec := doJSON(t, s, "POST", "/v1/transform",
			`{"text":"","presets":["qrDecode"]}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("unknown preset rejected", func(t *testing.T) {
		rec := doJSON(t, s, "POST", "/v1/transform",
			`{"text":"x","presets":["spin"]}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400: %s", rec.Code, rec.Body.String())
		}
	})
}

func TestHandleSimilarity(t *testing.T) {
	s := newTestServer(t, Deps{Rules: &fakeRuleStore{}})

	rec := doJSON(t, s, "POST", "/v1/similarity", `{"a":"Normle","b":"normle"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp map[string]float64
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp["score"] != 1.0 {
		t.Errorf("score = %v, want 1.0", resp["score"])
	}
}

func TestRuleCRUD(t *testing.T) {
	store := &fakeRuleStore{}
	s := newTestServer(t, Deps{Rules: store})

	t.Run("create", func(t *testing.T) {
		rec := doJSON(t, s, "POST", "/v1/rules",
			`{"original":"Acme","masked":"CompanyA","kind":"company","isEnabled":true}`)
		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("duplicate maps to 409", func(t *testing.T) {
		dup := &fakeRuleStore{createErr: rules.ErrDuplicateOriginal}
		s := newTestServer(t, Deps{Rules: dup})
		rec := doJSON(t, s, "POST", "/v1/rules",
			`{"original":"Acme","masked":"CompanyA","kind":"company","isEnabled":true}`)
		if rec.Code != http.StatusConflict {
			t.Errorf("status = %d, want 409", rec.Code)
		}
	})

	t.Run("list", func(t *testing.T) {
		rec := doJSON(t, s, "GET", "/v1/rules", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		var list []masking.Rule
		if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
			t.Fatalf("unmarshal response: %v", err)
		}
		if len(list) != 1 {
			t.Errorf("len = %d, want 1", len(list))
		}
	})

	t.Run("update missing maps to 404", func(t *testing.T) {
		rec := doJSON(t, s, "PUT", "/v1/rules/missing",
			`{"original":"Acme","masked":"CompanyB","kind":"company","isEnabled":true}`)
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("delete", func(t *testing.T) {
		rec := doJSON(t, s, "DELETE", "/v1/rules/generated", "")
		if rec.Code != http.StatusNoContent {
			t.Errorf("status = %d, want 204", rec.Code)
		}
	})
}

func TestExportImportRoundTrip(t *testing.T) {
	store := &fakeRuleStore{rules: []masking.Rule{
		{ID: "r1", Original: "Acme", Masked: "CompanyA", Kind: masking.CategoryCompany, Enabled: true},
	}}
	s := newTestServer(t, Deps{Rules: store})

	rec := doJSON(t, s, "GET", "/v1/rules/export", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("export status = %d, want 200", rec.Code)
	}

	fresh := &fakeRuleStore{}
	s2 := newTestServer(t, Deps{Rules: fresh})
	rec2 := doJSON(t, s2, "POST", "/v1/rules/import", rec.Body.String())
	if rec2.Code != http.StatusOK {
		t.Fatalf("import status = %d, want 200: %s", rec2.Code, rec2.Body.String())
	}
	if len(fresh.rules) != 1 {
		t.Fatalf("imported rules = %d, want 1", len(fresh.rules))
	}
	if fresh.rules[0].Original != "Acme" || fresh.rules[0].Masked != "CompanyA" {
		t.Errorf("imported rule = %+v", fresh.rules[0])
	}
}

func TestImportRejectsBadPayloads(t *testing.T) {
	s := newTestServer(t, Deps{Rules: &fakeRuleStore{}})

	cases := []struct {
		name string
		body string
		want int
	}{
		{"wrong version", `{"version":2,"rules":[{"source":"a","target":"b"}]}`, http.StatusBadRequest},
		{"empty rules", `{"version":1,"rules":[]}`, http.StatusBadRequest},
		{"not json", `nope`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, s, "POST", "/v1/rules/import", tc.body)
			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestHandlePresets(t *testing.T) {
	s := newTestServer(t, Deps{Rules: &fakeRuleStore{}})

	rec := doJSON(t, s, "GET", "/v1/presets", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var groups []transform.Group
	if err := json.Unmarshal(rec.Body.Bytes(), &groups); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(groups) == 0 {
		t.Error("expected at least one preset group")
	}
}

func TestHandleListHistory(t *testing.T) {
	target := "masked"
	s := newTestServer(t, Deps{
		Rules:   &fakeRuleStore{},
		History: &fakeHistoryStore{records: []history.Record{{ID: "h1", TargetText: target}}},
	})

	rec := doJSON(t, s, "GET", "/v1/history", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var records []history.Record
	if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(records) != 1 || records[0].TargetText != target {
		t.Errorf("records = %+v", records)
	}
}

func TestRateLimitExceeded(t *testing.T) {
	cfg := config.GetDefaults()
	cfg.Server.RateLimit.Enabled = true
	cfg.Server.RateLimit.RequestsPerSecond = 1
	cfg.Server.RateLimit.Burst = 1

	engine := masking.NewEngine(zap.NewNop())
	pipeline := transform.NewPipeline(engine, zap.NewNop())
	s := New(cfg, &logger.Logger{Logger: zap.NewNop()}, engine, pipeline, Deps{Rules: &fakeRuleStore{}})

	first := doJSON(t, s, "POST", "/v1/similarity", `{"a":"x","b":"x"}`)
	if first.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", first.Code)
	}
	second := doJSON(t, s, "POST", "/v1/similarity", `{"a":"x","b":"x"}`)
	if second.Code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want 429", second.Code)
	}
}

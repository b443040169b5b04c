package db

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func newContext(header string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?tenant_id=from_query", nil)
	if header != "" {
		req.Header.Set(TenantHeader, header)
	}
	return e.NewContext(req, httptest.NewRecorder())
}

func TestExtractTenantID(t *testing.T) {
	c := newContext("lab_north")
	if tid := extractTenantID(c, "default"); tid != "lab_north" {
		t.Errorf("expected lab_north, got %s", tid)
	}

	c.Set("jwt_tenant_id", "lab_south")
	if tid := extractTenantID(c, "default"); tid != "lab_south" {
		t.Errorf("expected token claim to win, got %s", tid)
	}

	c = newContext("")
	c.Set("jwt_tenant_id", "")
	if tid := extractTenantID(c, "default"); tid != "default" {
		t.Errorf("query parameters must be ignored, got %s", tid)
	}
}

func TestSchemaName(t *testing.T) {
	tests := []struct {
		tenant  string
		want    string
		wantErr bool
	}{
		{"default", `"tenant_default"`, false},
		{"Lab_42", `"tenant_Lab_42"`, false},
		{"", "", true},
		{"lab-north", "", true},
		{"lab;DROP SCHEMA public", "", true},
		{"lab north", "", true},
		{strings.Repeat("a", 49), "", true},
	}
	for _, tt := range tests {
		got, err := SchemaName(tt.tenant)
		if (err != nil) != tt.wantErr {
			t.Errorf("SchemaName(%q) error = %v, wantErr %v", tt.tenant, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("SchemaName(%q) = %s, want %s", tt.tenant, got, tt.want)
		}
	}
}

func TestTenantContext(t *testing.T) {
	if TenantFromContext(context.Background()) != "" {
		t.Error("expected empty tenant")
	}
	ctx := WithTenant(context.Background(), "lab_north")
	if TenantFromContext(ctx) != "lab_north" {
		t.Errorf("expected lab_north, got %s", TenantFromContext(ctx))
	}
	if ConnFromContext(ctx) != nil {
		t.Error("expected no connection")
	}
	if ConnFromContext(context.WithValue(ctx, DBConnKey, "not a conn")) != nil {
		t.Error("expected nil for wrong type")
	}
}

func TestCreateTenantSchema_InvalidID(t *testing.T) {
	if _, err := CreateTenantSchema(context.Background(), nil, "bad-id", nil); err == nil {
		t.Error("expected error for invalid tenant id")
	}
}

func TestTxFromContext(t *testing.T) {
	if TxFromContext(context.Background()) != nil {
		t.Error("expected nil tx")
	}
	if TxFromContext(context.WithValue(context.Background(), DBTxKey, 42)) != nil {
		t.Error("expected nil for wrong type")
	}
}

func TestWithTx_NoConnection(t *testing.T) {
	_, tx, err := WithTx(context.Background())
	if err == nil || tx != nil {
		t.Errorf("expected error without connection, got %v", err)
	}
}

func TestRunInTx_NoConnectionRunsDirectly(t *testing.T) {
	called := false
	err := RunInTx(context.Background(), func(ctx context.Context) error {
		called = true
		if TxFromContext(ctx) != nil {
			t.Error("expected no tx")
		}
		return nil
	})
	if err != nil || !called {
		t.Errorf("expected fn to run, err=%v called=%v", err, called)
	}
}

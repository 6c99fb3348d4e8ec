package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"fintrack/internal/core"
	ports "fintrack/internal/sheets"
)

func TestNew_MissingSpreadsheetID(t *testing.T) {
	if _, err := New(nil, "  ", "", nil); err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := NewFromEnv(context.Background(), "", "", nil); err == nil {
		t.Fatal("expected error for missing spreadsheet id")
	}
}

func TestServiceAccountCredentials_Missing(t *testing.T) {
	for _, k := range []string{"GOOGLE_SERVICE_ACCOUNT_JSON", "GOOGLE_SERVICE_ACCOUNT_FILE", "GOOGLE_APPLICATION_CREDENTIALS"} {
		t.Setenv(k, "")
	}
	_, err := serviceAccountCredentials()
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestServiceAccountCredentials_File(t *testing.T) {
	path := t.TempDir() + "/sa.json"
	if err := os.WriteFile(path, []byte(`{"type":"service_account"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", path)

	b, err := serviceAccountCredentials()
	if err != nil || !strings.Contains(string(b), "service_account") {
		t.Fatalf("got %q, %v", b, err)
	}
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		baseName string
		year     int
		expected string
	}{
		{"Reports", 2025, "2025 Reports"},
		{"", 2023, ""},
		{"Monthly Reports", 2022, "2022 Monthly Reports"},
		{"2025 Already Prefixed", 2024, "2025 Already Prefixed"},
	}
	for _, tt := range tests {
		if got := yearPrefixedName(tt.baseName, tt.year); got != tt.expected {
			t.Errorf("yearPrefixedName(%q, %d) = %q, want %q", tt.baseName, tt.year, got, tt.expected)
		}
	}
}

func TestAppendReport(t *testing.T) {
	var gotPath string
	var gotQuery string
	var gotBody struct {
		Values [][]any `json:"values"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		b, _ := io.ReadAll(r.Body)
		json.Unmarshal(b, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"spreadsheetId":"sheet-1","updates":{"updatedRange":"'2024 Reports'!A2:I2","updatedRows":1}}`)
	}))
	defer srv.Close()

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatal(err)
	}
	c, err := New(svc, "sheet-1", "", nil)
	if err != nil {
		t.Fatal(err)
	}

	r, _ := core.ParseDateRange("2024-02-01", "2024-02-29")
	ref, err := c.AppendReport(context.Background(), ports.ReportRow{
		Kind:       "monthly",
		Range:      r,
		Income:     core.Num(1000),
		Balance:    core.Num(-50),
		Text:       "report body",
		ExportedAt: time.Date(2025, 1, 5, 10, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatal(err)
	}
	if ref != "'2024 Reports'!A2:I2" {
		t.Fatalf("ref = %q", ref)
	}
	if !strings.HasPrefix(gotPath, "/v4/spreadsheets/sheet-1/values/") || !strings.HasSuffix(gotPath, ":append") {
		t.Fatalf("path = %q", gotPath)
	}
	if !strings.Contains(gotPath, "2024 Reports!A:I") {
		t.Fatalf("sheet name should use the report year: %q", gotPath)
	}
	if !strings.Contains(gotQuery, "valueInputOption=USER_ENTERED") {
		t.Fatalf("query = %q", gotQuery)
	}
	if len(gotBody.Values) != 1 || len(gotBody.Values[0]) != 9 {
		t.Fatalf("values = %v", gotBody.Values)
	}
	row := gotBody.Values[0]
	if row[1] != "monthly" || row[2] != "2024-02-01" || row[5] != "" || row[8] != "report body" {
		t.Fatalf("row = %v", row)
	}
}

func TestAppendReport_NoService(t *testing.T) {
	c := &Client{spreadsheetID: "x", sheetBase: DefaultSheetName}
	if _, err := c.AppendReport(context.Background(), ports.ReportRow{}); err == nil {
		t.Fatal("expected error without service")
	}
}

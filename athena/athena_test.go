package athena

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	awsathena "github.com/aws/aws-sdk-go-v2/service/athena"
	"github.com/aws/aws-sdk-go-v2/service/athena/types"
)

// mockAthenaClient implements the aws.AthenaClient interface for testing.
// It succeeds after pendingPolls state checks and serves result pages.
type mockAthenaClient struct {
	pendingPolls int
	finalState   types.QueryExecutionState
	pages        [][]types.Row
	pageCalls    int
	startErr     error
}

func str(s string) *string { return &s }

func row(values ...string) types.Row {
	data := make([]types.Datum, len(values))
	for i, v := range values {
		data[i] = types.Datum{VarCharValue: str(v)}
	}
	return types.Row{Data: data}
}

func (m *mockAthenaClient) StartQueryExecution(ctx context.Context, params *awsathena.StartQueryExecutionInput, optFns ...func(*awsathena.Options)) (*awsathena.StartQueryExecutionOutput, error) {
	if m.startErr != nil {
		return nil, m.startErr
	}
	return &awsathena.StartQueryExecutionOutput{QueryExecutionId: str("q-1")}, nil
}

func (m *mockAthenaClient) GetQueryExecution(ctx context.Context, params *awsathena.GetQueryExecutionInput, optFns ...func(*awsathena.Options)) (*awsathena.GetQueryExecutionOutput, error) {
	state := m.finalState
	if m.pendingPolls > 0 {
		m.pendingPolls--
		state = types.QueryExecutionStateRunning
	}
	return &awsathena.GetQueryExecutionOutput{
		QueryExecution: &types.QueryExecution{
			Status: &types.QueryExecutionStatus{
				State:             state,
				StateChangeReason: str("test reason"),
			},
		},
	}, nil
}

func (m *mockAthenaClient) GetQueryResults(ctx context.Context, params *awsathena.GetQueryResultsInput, optFns ...func(*awsathena.Options)) (*awsathena.GetQueryResultsOutput, error) {
	if m.pageCalls >= len(m.pages) {
		return &awsathena.GetQueryResultsOutput{ResultSet: &types.ResultSet{}}, nil
	}
	out := &awsathena.GetQueryResultsOutput{
		ResultSet: &types.ResultSet{Rows: m.pages[m.pageCalls]},
	}
	m.pageCalls++
	if m.pageCalls < len(m.pages) {
		out.NextToken = str(fmt.Sprintf("token-%d", m.pageCalls))
	}
	return out, nil
}

func testConfig() Config {
	return Config{
		Database:       "analytics",
		OutputLocation: "s3://staging/athena/",
		PollInterval:   time.Millisecond,
	}
}

func newTestHelper(t *testing.T, client *mockAthenaClient) *Helper {
	t.Helper()
	h, err := NewHelper(client, testConfig(), slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("NewHelper failed: %v", err)
	}
	return h
}

func TestQuery(t *testing.T) {
	client := &mockAthenaClient{
		pendingPolls: 2,
		finalState:   types.QueryExecutionStateSucceeded,
		pages: [][]types.Row{
			{row("id", "name"), row("1", "alpha")},
			{row("2", "beta")},
		},
	}

	records, err := newTestHelper(t, client).Query(context.Background(), "SELECT id, name FROM t")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0]["id"] != "1" || records[0]["name"] != "alpha" {
		t.Errorf("got %v", records[0])
	}
	if records[1]["id"] != "2" || records[1]["name"] != "beta" {
		t.Errorf("got %v", records[1])
	}
}

func TestQueryFailedState(t *testing.T) {
	client := &mockAthenaClient{finalState: types.QueryExecutionStateFailed}
	_, err := newTestHelper(t, client).Query(context.Background(), "SELECT 1")
	if err == nil {
		t.Fatal("expected error for failed query, got nil")
	}
}

func TestQueryStartError(t *testing.T) {
	client := &mockAthenaClient{startErr: fmt.Errorf("denied")}
	_, err := newTestHelper(t, client).Query(context.Background(), "SELECT 1")
	if err == nil {
		t.Fatal("expected error when start fails, got nil")
	}
}

func TestQueryContextCancelled(t *testing.T) {
	client := &mockAthenaClient{
		pendingPolls: 1 << 30,
		finalState:   types.QueryExecutionStateSucceeded,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := newTestHelper(t, client).Query(ctx, "SELECT 1")
	if err == nil {
		t.Fatal("expected context error, got nil")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", testConfig(), false},
		{"missing database", Config{OutputLocation: "s3://b/p"}, true},
		{"missing output", Config{Database: "db"}, true},
		{"bad output scheme", Config{Database: "db", OutputLocation: "http://x"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMissingCellsAreNil(t *testing.T) {
	client := &mockAthenaClient{
		finalState: types.QueryExecutionStateSucceeded,
		pages: [][]types.Row{
			{row("a", "b"), {Data: []types.Datum{{VarCharValue: str("1")}, {}}}},
		},
	}
	records, err := newTestHelper(t, client).Query(context.Background(), "SELECT a, b FROM t")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if records[0]["b"] != nil {
		t.Errorf("got %v, want nil for missing cell", records[0]["b"])
	}
}

package management

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

type staticQuerier map[string]QueryResponse

func (s staticQuerier) Query(_ context.Context, entityType string, attrs []string) (QueryResponse, error) {
	resp, ok := s[entityType]
	if !ok {
		return QueryResponse{}, fmt.Errorf("%s: %w", entityType, ErrUnknownType)
	}
	return resp, nil
}

func TestRecordsFlattenResults(t *testing.T) {
	resp := QueryResponse{
		AttributeNames: []string{"name", "deliveryCount"},
		Results:        [][]any{{"l1", 3.0}, {"l2"}},
	}
	recs := resp.Records()
	if len(recs) != 2 || recs[0]["name"] != "l1" || recs[0]["deliveryCount"] != 3.0 {
		t.Fatalf("records = %v", recs)
	}
	if _, ok := recs[1]["deliveryCount"]; ok {
		t.Fatalf("short row filled in: %v", recs[1])
	}
}

func TestClientSendsQueryWithCorrelationID(t *testing.T) {
	var got QueryRequest
	var corr string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		corr = r.Header.Get(CorrelationHeader)
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set(CorrelationHeader, corr)
		json.NewEncoder(w).Encode(QueryResponse{
			StatusCode:     200,
			AttributeNames: []string{"name"},
			Results:        [][]any{{"a"}},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, nil)
	resp, err := c.Query(context.Background(), TypeAddress, []string{"name"})
	if err != nil {
		t.Fatal(err)
	}
	if got.Operation != "QUERY" || got.EntityType != TypeAddress || len(got.AttributeNames) != 1 {
		t.Fatalf("request = %+v", got)
	}
	if corr == "" {
		t.Fatal("no correlation id sent")
	}
	if len(resp.Results) != 1 {
		t.Fatalf("results = %v", resp.Results)
	}
}

func TestClientRejectsCorrelationMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(CorrelationHeader, "someone-else")
		json.NewEncoder(w).Encode(QueryResponse{StatusCode: 200})
	}))
	defer srv.Close()
	if _, err := NewClient(srv.URL, time.Second, nil).Query(context.Background(), TypeLink, nil); err == nil {
		t.Fatal("expected mismatch error")
	}
}

func TestClientSurfacesAgentStatus(t *testing.T) {
	srv := httptest.NewServer(NewHandler(staticQuerier{}))
	defer srv.Close()
	_, err := NewClient(srv.URL, time.Second, nil).Query(context.Background(), "org.example.nothing", nil)
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("err = %v", err)
	}
}

func TestClientHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "broken", http.StatusBadGateway)
	}))
	defer srv.Close()
	_, err := NewClient(srv.URL, time.Second, nil).Query(context.Background(), TypeLink, nil)
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Fatalf("err = %v", err)
	}
}

func TestHandlerWindowsResults(t *testing.T) {
	q := staticQuerier{TypeAddress: {
		AttributeNames: []string{"name"},
		Results:        [][]any{{"a"}, {"b"}, {"c"}},
	}}
	srv := httptest.NewServer(NewHandler(q))
	defer srv.Close()
	body := `{"operation":"QUERY","entityType":"` + TypeAddress + `","attributeNames":["name"],"offset":1,"count":1}`
	resp, err := http.Post(srv.URL, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out QueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Results) != 1 || out.Results[0][0] != "b" {
		t.Fatalf("results = %v", out.Results)
	}
}

func TestLinkSourceJoinsConnections(t *testing.T) {
	q := staticQuerier{
		TypeLink: {
			AttributeNames: []string{"name", "connectionId", "deliveryCount"},
			Results:        [][]any{{"l1", 7.0, 10.0}, {"l2", 9.0, 1.0}},
		},
		TypeConnection: {
			AttributeNames: []string{"identity", "host", "container"},
			Results:        [][]any{{7.0, "10.0.0.7:5672", "broker"}},
		},
	}
	var links *linkSource
	for _, e := range Entities(q, nil) {
		if e.Name == "links" {
			links = e.Source().(*linkSource)
		}
	}
	page, err := links.Fetch(context.Background(), 1, 10)
	if err != nil {
		t.Fatal(err)
	}
	if page.Data[0]["connection"] != "10.0.0.7:5672" {
		t.Fatalf("join failed: %v", page.Data[0])
	}
	if _, ok := page.Data[1]["connection"]; ok {
		t.Fatalf("unmatched link joined: %v", page.Data[1])
	}
}

func TestLinkSourceToleratesConnectionFailure(t *testing.T) {
	q := staticQuerier{TypeLink: {AttributeNames: []string{"name"}, Results: [][]any{{"l1"}}}}
	src := &linkSource{q: q, log: zap.NewNop()}
	page, err := src.Fetch(context.Background(), 1, 10)
	if err != nil || len(page.Data) != 1 {
		t.Fatalf("page=%v err=%v", page, err)
	}
}

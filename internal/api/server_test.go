package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kabinet-ai/kabinet/internal/extract"
	"github.com/kabinet-ai/kabinet/internal/kb"
	"github.com/kabinet-ai/kabinet/internal/store"
	"github.com/kabinet-ai/kabinet/internal/testutil"
)

type fakeSyncer struct {
	report *kb.SyncReport
	err    error
}

func (f *fakeSyncer) Sync(ctx context.Context) (*kb.SyncReport, error) {
	return f.report, f.err
}

type fakeRetriever struct {
	result *kb.Result
	err    error
	got    kb.Request
}

func (f *fakeRetriever) Retrieve(ctx context.Context, req kb.Request) (*kb.Result, error) {
	f.got = req
	return f.result, f.err
}

type fakeAPIStore struct {
	docs        []store.Document
	convs       map[uuid.UUID]store.Conversation
	attachments map[uuid.UUID][]store.Attachment
	attachErr   error
}

func newFakeAPIStore() *fakeAPIStore {
	return &fakeAPIStore{
		convs:       make(map[uuid.UUID]store.Conversation),
		attachments: make(map[uuid.UUID][]store.Attachment),
	}
}

func (f *fakeAPIStore) ListDocuments(ctx context.Context, activeOnly bool) ([]store.Document, error) {
	if !activeOnly {
		return f.docs, nil
	}
	var out []store.Document
	for _, d := range f.docs {
		if d.Active {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeAPIStore) CreateConversation(ctx context.Context, title string) (store.Conversation, error) {
	c := store.Conversation{ID: uuid.New(), Title: title, KBMode: store.KBModeAuto, CreatedAt: time.Now()}
	f.convs[c.ID] = c
	return c, nil
}

func (f *fakeAPIStore) GetConversation(ctx context.Context, id uuid.UUID) (store.Conversation, error) {
	c, ok := f.convs[id]
	if !ok {
		return store.Conversation{}, store.ErrNotFound
	}
	return c, nil
}

func (f *fakeAPIStore) ListConversations(ctx context.Context) ([]store.Conversation, error) {
	var out []store.Conversation
	for _, c := range f.convs {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeAPIStore) SetKBMode(ctx context.Context, id uuid.UUID, mode string) error {
	c, ok := f.convs[id]
	if !ok {
		return store.ErrNotFound
	}
	c.KBMode = mode
	f.convs[id] = c
	return nil
}

func (f *fakeAPIStore) AttachDocument(ctx context.Context, conversationID, documentID uuid.UUID) error {
	if f.attachErr != nil {
		return f.attachErr
	}
	f.attachments[conversationID] = append(f.attachments[conversationID], store.Attachment{
		Document: store.Document{ID: documentID},
		Enabled:  true,
	})
	return nil
}

func (f *fakeAPIStore) DetachDocument(ctx context.Context, conversationID, documentID uuid.UUID) error {
	atts := f.attachments[conversationID]
	for i, a := range atts {
		if a.Document.ID == documentID {
			f.attachments[conversationID] = append(atts[:i], atts[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeAPIStore) SetAttachmentEnabled(ctx context.Context, conversationID, documentID uuid.UUID, enabled bool) error {
	atts := f.attachments[conversationID]
	for i, a := range atts {
		if a.Document.ID == documentID {
			atts[i].Enabled = enabled
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeAPIStore) ListAttachments(ctx context.Context, conversationID uuid.UUID) ([]store.Attachment, error) {
	return f.attachments[conversationID], nil
}

type testServer struct {
	handler   http.Handler
	syncer    *fakeSyncer
	retriever *fakeRetriever
	catalog   *fakeAPIStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	ts := &testServer{
		syncer:    &fakeSyncer{report: &kb.SyncReport{Indexed: 2, Unchanged: 1}},
		retriever: &fakeRetriever{result: &kb.Result{}},
		catalog:   newFakeAPIStore(),
	}
	srv, err := NewServer(ServerConfig{
		Logger:     testutil.DiscardLogger(),
		Syncer:     ts.syncer,
		Retriever:  ts.retriever,
		Catalog:    ts.catalog,
		AdminToken: "secret",
	})
	require.NoError(t, err)
	ts.handler = srv.Handler()
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

var adminHeaders = map[string]string{"Authorization": "Bearer secret"}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestSyncRequiresAdminToken(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/sync", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/sync", nil, map[string]string{"Authorization": "Bearer wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSyncReportsOutcome(t *testing.T) {
	ts := newTestServer(t)
	ts.syncer.report = &kb.SyncReport{
		Indexed:   3,
		Unchanged: 2,
		Failures:  []kb.FileFailure{{Path: "bad.pdf", Err: errors.New("boom")}},
		Duration:  1500 * time.Millisecond,
	}

	rec := ts.do(t, http.MethodPost, "/api/v1/sync", nil, adminHeaders)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp syncResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Indexed)
	assert.Equal(t, int64(1500), resp.DurationMs)
	require.Len(t, resp.Failures, 1)
	assert.Equal(t, "bad.pdf", resp.Failures[0].Path)
}

func TestSyncConflict(t *testing.T) {
	ts := newTestServer(t)
	ts.syncer.err = kb.ErrSyncInProgress

	rec := ts.do(t, http.MethodPost, "/api/v1/sync", nil, adminHeaders)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "sync_in_progress")
}

func TestSyncDisabledWithoutToken(t *testing.T) {
	srv, err := NewServer(ServerConfig{
		Logger:    testutil.DiscardLogger(),
		Syncer:    &fakeSyncer{},
		Retriever: &fakeRetriever{},
		Catalog:   newFakeAPIStore(),
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRetrieve(t *testing.T) {
	ts := newTestServer(t)
	ts.retriever.result = &kb.Result{
		Snippets: []kb.Snippet{
			{Text: "Refunds take 14 days.", DocumentPath: "refunds.pdf", Locations: []extract.Location{{Page: 3}}, Similarity: 0.91},
		},
		TokensUsed: 10,
	}

	rec := ts.do(t, http.MethodPost, "/api/v1/retrieve",
		map[string]any{"query": "refund policy", "top_k": 4}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp retrieveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Snippets, 1)
	assert.Equal(t, "refunds.pdf, page 3", resp.Snippets[0].Citation)
	assert.False(t, resp.UsedFallback)
	assert.Contains(t, resp.Prompt, "Refunds take 14 days.")
	assert.Equal(t, 4, ts.retriever.got.TopK)
}

func TestRetrieveValidation(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/retrieve", map[string]any{"query": "  "}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/retrieve",
		map[string]any{"query": "q", "conversation_id": "not-a-uuid"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRetrieveUnknownConversation(t *testing.T) {
	ts := newTestServer(t)
	ts.retriever.err = store.ErrNotFound

	rec := ts.do(t, http.MethodPost, "/api/v1/retrieve",
		map[string]any{"query": "q", "conversation_id": uuid.NewString()}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListDocuments(t *testing.T) {
	ts := newTestServer(t)
	ts.catalog.docs = []store.Document{
		{ID: uuid.New(), Path: "a.txt", Active: true},
		{ID: uuid.New(), Path: "b.txt", Active: false},
	}

	rec := ts.do(t, http.MethodGet, "/api/v1/documents", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Documents []documentResponse `json:"documents"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Documents, 2)

	rec = ts.do(t, http.MethodGet, "/api/v1/documents?active=true", nil, nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Documents, 1)
}

func TestConversationLifecycle(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/conversations", map[string]any{"title": "support"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var conv conversationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conv))
	assert.Equal(t, "auto", conv.KBMode)

	rec = ts.do(t, http.MethodPatch, "/api/v1/conversations/"+conv.ID, map[string]any{"kb_mode": "off"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conv))
	assert.Equal(t, "off", conv.KBMode)

	rec = ts.do(t, http.MethodPatch, "/api/v1/conversations/"+conv.ID, map[string]any{"kb_mode": "sometimes"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/conversations/"+uuid.NewString(), nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAttachmentEndpoints(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/conversations", map[string]any{"title": "t"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var conv conversationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conv))

	docID := uuid.New()
	base := "/api/v1/conversations/" + conv.ID + "/documents"

	rec = ts.do(t, http.MethodPost, base, map[string]any{"document_id": docID.String()}, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodGet, base, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listResp struct {
		Documents []attachmentResponse `json:"documents"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listResp))
	require.Len(t, listResp.Documents, 1)
	assert.True(t, listResp.Documents[0].Enabled)

	rec = ts.do(t, http.MethodPatch, base+"/"+docID.String(), map[string]any{"enabled": false}, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodDelete, base+"/"+docID.String(), nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodDelete, base+"/"+docID.String(), nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	panics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	handler := recoveryMiddleware(testutil.DiscardLogger())(panics)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal_error")
}

package shanoir

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	client, err := NewClient(Config{Domain: serverURL, Username: "alice", Password: "secret"})
	require.NoError(t, err)
	return client
}

func TestNewClient(t *testing.T) {
	t.Run("scheme is added when missing", func(t *testing.T) {
		client, err := NewClient(Config{Domain: "shanoir.irisa.fr", Username: "alice"})
		require.NoError(t, err)
		assert.Equal(t, "https", client.baseURL.Scheme)
		assert.Equal(t, "shanoir.irisa.fr", client.baseURL.Host)
	})

	t.Run("empty domain rejected", func(t *testing.T) {
		_, err := NewClient(Config{Username: "alice"})
		assert.Error(t, err)
	})

	t.Run("empty username rejected", func(t *testing.T) {
		_, err := NewClient(Config{Domain: "shanoir.irisa.fr"})
		assert.Error(t, err)
	})
}

func TestClient_Authenticate(t *testing.T) {
	var gotForm map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, tokenPath, r.URL.Path)
		require.NoError(t, r.ParseForm())
		gotForm = map[string]string{
			"client_id":  r.PostForm.Get("client_id"),
			"grant_type": r.PostForm.Get("grant_type"),
			"username":   r.PostForm.Get("username"),
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"access_token": "tok-123"}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	require.NoError(t, client.authenticate(context.Background()))
	assert.Equal(t, "tok-123", client.token)
	assert.Equal(t, "shanoir-uploader", gotForm["client_id"])
	assert.Equal(t, "password", gotForm["grant_type"])
	assert.Equal(t, "alice", gotForm["username"])
}

func TestClient_AuthenticateFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	err := client.authenticate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestClient_Search(t *testing.T) {
	t.Run("found results are parsed", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, searchPath, r.URL.Path)
			assert.Equal(t, "0", r.URL.Query().Get("page"))
			assert.Equal(t, "200", r.URL.Query().Get("size"))
			assert.Equal(t, SortSpec, r.URL.Query().Get("sort"))
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

			var payload map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Equal(t, "studyName:X", payload["searchText"])
			assert.Equal(t, true, payload["expertMode"])

			io.WriteString(w, `{"content": [
				{"id": "42", "datasetId": 42, "datasetName": "t1_mprage",
				 "studyName": "X", "subjectName": "s1",
				 "examinationComment": "V1", "examinationDate": "2020-03-01"}
			]}`)
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)
		client.SetToken("tok")
		resp, err := client.Search(context.Background(), "studyName:X")
		require.NoError(t, err)
		assert.True(t, resp.Found())
		require.Len(t, resp.Items, 1)
		assert.Equal(t, int64(42), resp.Items[0].DatasetID)
		assert.Equal(t, "t1_mprage", resp.Items[0].DatasetName)
		assert.Equal(t, "V1", resp.Items[0].ExamComment)
	})

	t.Run("204 means no content", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)
		client.SetToken("tok")
		resp, err := client.Search(context.Background(), "q")
		require.NoError(t, err)
		assert.False(t, resp.Found())
		assert.True(t, resp.Empty())
		assert.Empty(t, resp.Items)
	})

	t.Run("other statuses pass through without error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)
		client.SetToken("tok")
		resp, err := client.Search(context.Background(), "q")
		require.NoError(t, err)
		assert.Equal(t, http.StatusInternalServerError, resp.Status)
		assert.False(t, resp.Found())
		assert.False(t, resp.Empty())
	})
}

func TestClient_Download(t *testing.T) {
	item := Result{ID: "7", DatasetID: 7, DatasetName: "Resting State"}

	t.Run("writes archive with sanitized name", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, dlPath+"/7", r.URL.Path)
			assert.Equal(t, "dcm", r.URL.Query().Get("format"))
			io.WriteString(w, "zip-bytes")
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)
		client.SetToken("tok")
		dir := t.TempDir()
		path, err := client.Download(context.Background(), item, FileTypeDicom, dir)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "Resting_State-7.zip"), path)

		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "zip-bytes", string(raw))
	})

	t.Run("nifti downloads use the nii format", func(t *testing.T) {
		var gotFormat string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotFormat = r.URL.Query().Get("format")
			io.WriteString(w, "zip-bytes")
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)
		client.SetToken("tok")
		_, err := client.Download(context.Background(), item, FileTypeNifti, t.TempDir())
		require.NoError(t, err)
		assert.Equal(t, "nii", gotFormat)
	})

	t.Run("non-200 is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)
		client.SetToken("tok")
		_, err := client.Download(context.Background(), item, FileTypeDicom, t.TempDir())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 404")
	})
}

func TestArchiveFileName(t *testing.T) {
	assert.Equal(t, "a_b_c_d-1.zip", archiveFileName(Result{ID: "1", DatasetName: `a/b\c d`}))
	assert.Equal(t, "dataset-2.zip", archiveFileName(Result{ID: "2"}))
}

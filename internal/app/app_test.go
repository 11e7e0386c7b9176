package app

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"testing"

	"shanoir2bids/internal/bids"
	"shanoir2bids/internal/config"
	"shanoir2bids/internal/gateway/heudiconv"
	"shanoir2bids/internal/gateway/shanoir"
	"shanoir2bids/internal/logger"
	"shanoir2bids/internal/seqinfo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockClient struct {
	mock.Mock
}

func (m *MockClient) Search(ctx context.Context, text string) (*shanoir.SearchResponse, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shanoir.SearchResponse), args.Error(1)
}

func (m *MockClient) Download(ctx context.Context, item shanoir.Result, fileType, destDir string) (string, error) {
	args := m.Called(ctx, item, fileType, destDir)
	return args.String(0), args.Error(1)
}

type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Convert(ctx context.Context, p heudiconv.Params) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func testConfig(subjects ...string) *config.StudyConfig {
	return &config.StudyConfig{
		StudyName:     "Aneravimm",
		Subjects:      subjects,
		SessionFilter: "*",
		SequenceRules: []config.SequenceRule{
			{DatasetName: "t1_mprage", BidsDir: "anat", BidsName: "T1w"},
		},
		RenameRules: []config.RenameRule{{Find: "VS_Aneravimm_", Replace: "VS"}},
		DateFrom:    "*",
		DateTo:      "*",
	}
}

func testApp(t *testing.T, cfg *config.StudyConfig, client *MockClient, runner *MockRunner) *App {
	t.Helper()
	return &App{
		opts: Options{
			Username:     "alice",
			DownloadDir:  t.TempDir(),
			OutputFormat: bids.OutputNifti,
			FileType:     shanoir.FileTypeDicom,
			Jobs:         1,
		},
		cfg:     cfg,
		client:  client,
		runner:  runner,
		extract: func(src, destDir string) error { return nil },
		scan: func(root string) (seqinfo.Report, error) {
			return seqinfo.Report{
				Series: []seqinfo.Series{{Number: "2", Description: "t1_mprage", Files: 1}},
				Files:  []string{root + "/1/img001.dcm"},
			}, nil
		},
	}
}

func foundResponse(items ...shanoir.Result) *shanoir.SearchResponse {
	return &shanoir.SearchResponse{Status: 200, Items: items}
}

func TestApp_Run(t *testing.T) {
	item := shanoir.Result{ID: "1", DatasetID: 1, DatasetName: "t1_mprage", SubjectName: "VS_Aneravimm_010"}

	t.Run("single subject happy path", func(t *testing.T) {
		client := new(MockClient)
		runner := new(MockRunner)
		app := testApp(t, testConfig("VS_Aneravimm_010"), client, runner)

		client.On("Search", mock.Anything, mock.Anything).Return(foundResponse(item), nil)
		client.On("Download", mock.Anything, item, shanoir.FileTypeDicom, mock.Anything).Return("/tmp/t1-1.zip", nil)

		var gotParams heudiconv.Params
		runner.On("Convert", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			gotParams = args.Get(1).(heudiconv.Params)
		}).Return(nil)

		require.NoError(t, app.Run(context.Background()))
		runner.AssertNumberOfCalls(t, "Convert", 1)
		assert.Equal(t, "VS010", gotParams.Subject, "subject id should be the renamed one")
		assert.Contains(t, gotParams.OutputDir, "Aneravimm")
		assert.NotEmpty(t, gotParams.Files)
		assert.Empty(t, gotParams.Session)
	})

	t.Run("search transport error does not fail the subject", func(t *testing.T) {
		client := new(MockClient)
		runner := new(MockRunner)
		app := testApp(t, testConfig("s1"), client, runner)

		client.On("Search", mock.Anything, mock.Anything).Return(nil, fmt.Errorf("connection refused"))

		require.NoError(t, app.Run(context.Background()))
		runner.AssertNotCalled(t, "Convert", mock.Anything, mock.Anything)
	})

	t.Run("no content skips conversion", func(t *testing.T) {
		client := new(MockClient)
		runner := new(MockRunner)
		app := testApp(t, testConfig("s1"), client, runner)

		client.On("Search", mock.Anything, mock.Anything).Return(&shanoir.SearchResponse{Status: 204}, nil)

		require.NoError(t, app.Run(context.Background()))
		client.AssertNotCalled(t, "Download", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		runner.AssertNotCalled(t, "Convert", mock.Anything, mock.Anything)
	})

	t.Run("conversion failure fails only that subject", func(t *testing.T) {
		client := new(MockClient)
		runner := new(MockRunner)
		app := testApp(t, testConfig("s1", "s2"), client, runner)

		client.On("Search", mock.Anything, mock.Anything).Return(foundResponse(item), nil)
		client.On("Download", mock.Anything, item, shanoir.FileTypeDicom, mock.Anything).Return("/tmp/t1-1.zip", nil)
		runner.On("Convert", mock.Anything, mock.Anything).Return(fmt.Errorf("heudiconv exploded")).Once()
		runner.On("Convert", mock.Anything, mock.Anything).Return(nil).Once()

		err := app.Run(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "1 of 2 subjects failed")
	})

	t.Run("download failure skips the item", func(t *testing.T) {
		client := new(MockClient)
		runner := new(MockRunner)
		app := testApp(t, testConfig("s1"), client, runner)

		client.On("Search", mock.Anything, mock.Anything).Return(foundResponse(item), nil)
		client.On("Download", mock.Anything, item, shanoir.FileTypeDicom, mock.Anything).Return("", fmt.Errorf("status 500"))

		require.NoError(t, app.Run(context.Background()))
		runner.AssertNotCalled(t, "Convert", mock.Anything, mock.Anything)
	})

	t.Run("extraction failure skips the item", func(t *testing.T) {
		client := new(MockClient)
		runner := new(MockRunner)
		app := testApp(t, testConfig("s1"), client, runner)
		app.extract = func(src, destDir string) error { return fmt.Errorf("corrupt archive") }

		client.On("Search", mock.Anything, mock.Anything).Return(foundResponse(item), nil)
		client.On("Download", mock.Anything, item, shanoir.FileTypeDicom, mock.Anything).Return("/tmp/t1-1.zip", nil)

		require.NoError(t, app.Run(context.Background()))
		runner.AssertNotCalled(t, "Convert", mock.Anything, mock.Anything)
	})

	t.Run("longitudinal passes the session id", func(t *testing.T) {
		client := new(MockClient)
		runner := new(MockRunner)
		cfg := testConfig("VS_Aneravimm_010")
		cfg.SequenceRules[0].BidsSession = "V1"
		app := testApp(t, cfg, client, runner)
		app.opts.Longitudinal = true

		client.On("Search", mock.Anything, mock.Anything).Return(foundResponse(item), nil)
		client.On("Download", mock.Anything, item, shanoir.FileTypeDicom, mock.Anything).Return("/tmp/t1-1.zip", nil)

		var gotParams heudiconv.Params
		runner.On("Convert", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			gotParams = args.Get(1).(heudiconv.Params)
		}).Return(nil)

		require.NoError(t, app.Run(context.Background()))
		assert.Equal(t, "V1", gotParams.Session)
	})

	t.Run("zero jobs still processes every subject", func(t *testing.T) {
		client := new(MockClient)
		runner := new(MockRunner)
		app := testApp(t, testConfig("s1", "s2"), client, runner)
		app.opts.Jobs = 0

		client.On("Search", mock.Anything, mock.Anything).Return(&shanoir.SearchResponse{Status: 204}, nil)

		require.NoError(t, app.Run(context.Background()))
		client.AssertNumberOfCalls(t, "Search", 2)
	})

	t.Run("success banner only for subjects that succeeded", func(t *testing.T) {
		var buf bytes.Buffer
		logger.SetOutput(&buf)
		t.Cleanup(func() { logger.SetOutput(os.Stdout) })

		client := new(MockClient)
		runner := new(MockRunner)
		app := testApp(t, testConfig("s1", "s2"), client, runner)

		client.On("Search", mock.Anything, mock.Anything).Return(foundResponse(item), nil)
		client.On("Download", mock.Anything, item, shanoir.FileTypeDicom, mock.Anything).Return("/tmp/t1-1.zip", nil)
		runner.On("Convert", mock.Anything, mock.Anything).Return(fmt.Errorf("heudiconv exploded")).Once()
		runner.On("Convert", mock.Anything, mock.Anything).Return(nil).Once()

		require.Error(t, app.Run(context.Background()))
		got := buf.String()
		assert.Contains(t, got, "Downloaded dataset for subject s2")
		assert.NotContains(t, got, "Downloaded dataset for subject s1")
	})

	t.Run("no extracted files skips conversion without failing", func(t *testing.T) {
		client := new(MockClient)
		runner := new(MockRunner)
		app := testApp(t, testConfig("s1"), client, runner)
		app.scan = func(root string) (seqinfo.Report, error) { return seqinfo.Report{}, nil }

		client.On("Search", mock.Anything, mock.Anything).Return(foundResponse(item), nil)
		client.On("Download", mock.Anything, item, shanoir.FileTypeDicom, mock.Anything).Return("/tmp/t1-1.zip", nil)

		require.NoError(t, app.Run(context.Background()))
		runner.AssertNotCalled(t, "Convert", mock.Anything, mock.Anything)
	})
}

func TestApp_SearchTextUsesConfigFacets(t *testing.T) {
	client := new(MockClient)
	runner := new(MockRunner)
	cfg := testConfig("s1")
	cfg.SessionFilter = "V1"
	cfg.DateFrom = "2020-02-19T00:00:00Z"
	app := testApp(t, cfg, client, runner)

	var gotText string
	client.On("Search", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		gotText = args.String(1)
	}).Return(&shanoir.SearchResponse{Status: 204}, nil)

	require.NoError(t, app.Run(context.Background()))
	assert.Contains(t, gotText, "studyName:Aneravimm")
	assert.Contains(t, gotText, "datasetName:t1_mprage")
	assert.Contains(t, gotText, "subjectName:s1")
	assert.Contains(t, gotText, "examinationComment:V1")
	assert.Contains(t, gotText, "examinationDate:[2020-02-19T00:00:00Z TO *]")
}

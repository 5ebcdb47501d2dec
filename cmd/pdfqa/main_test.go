package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/pdfqa/internal/config"
	"github.com/fyrsmithlabs/pdfqa/internal/orchestrator"
)

func TestResolveQuestions(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "questions.txt")
	require.NoError(t, os.WriteFile(file, []byte("# handbook\nWhat is the dress code?\n\n  Who approves leave?  \n"), 0o600))

	tests := []struct {
		name    string
		flags   []string
		file    string
		want    []string
		wantErr bool
	}{
		{
			name: "defaults when nothing given",
			want: defaultQuestions,
		},
		{
			name:  "blank flags fall back to defaults",
			flags: []string{"  ", ""},
			want:  defaultQuestions,
		},
		{
			name:  "flag questions are trimmed",
			flags: []string{" Who is the CEO? "},
			want:  []string{"Who is the CEO?"},
		},
		{
			name:  "flags then file",
			flags: []string{"Q1"},
			file:  file,
			want:  []string{"Q1", "What is the dress code?", "Who approves leave?"},
		},
		{
			name:    "missing file",
			file:    filepath.Join(dir, "missing.txt"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveQuestions(tt.flags, tt.file)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveQuestions_DefaultsAreCopied(t *testing.T) {
	got, err := resolveQuestions(nil, "")
	require.NoError(t, err)
	got[0] = "changed"
	assert.Equal(t, "What is the name of the company?", defaultQuestions[0])
}

func TestLoadConfig_Overrides(t *testing.T) {
	opts := &globalOptions{
		envFile:  filepath.Join(t.TempDir(), "missing.env"),
		variant:  config.VariantSimple,
		noNotify: true,
	}

	cfg, err := loadConfig(opts)
	require.NoError(t, err)
	assert.Equal(t, config.VariantSimple, cfg.Pipeline.Variant)
	assert.False(t, cfg.Notify.Enabled)
	assert.False(t, cfg.Pipeline.IncludeSection())
}

func TestLoadConfig_InvalidVariant(t *testing.T) {
	opts := &globalOptions{variant: "fancy"}

	_, err := loadConfig(opts)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestLoadConfig_EnvFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("PDFQA_LLM_MODEL=gpt-4o-mini\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("PDFQA_LLM_MODEL") })

	cfg, err := loadConfig(&globalOptions{envFile: envFile})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
}

func TestWriteFatal(t *testing.T) {
	var buf bytes.Buffer
	cause := errors.New("boom")

	err := writeFatal(&buf, cause)
	assert.Same(t, cause, err)

	var doc map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, map[string]string{"error": "boom"}, doc)
}

func TestAskCommand_MissingPDF(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PDFQA_EMBEDDINGS_PROVIDER", "hash")
	t.Setenv("PDFQA_LLM_API_KEY", "sk-test")
	t.Setenv("PDFQA_CACHE_PATH", filepath.Join(dir, "qa_cache.db"))
	t.Setenv("PDFQA_VECTORSTORE_PATH", filepath.Join(dir, "db"))

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{
		"ask",
		"--env-file", "",
		"--no-notify",
		"--pdf", filepath.Join(dir, "missing.pdf"),
		"-q", "Who is the CEO of the company?",
	})

	err := root.Execute()
	require.Error(t, err)
	assert.ErrorIs(t, err, orchestrator.ErrBatchAborted)

	var doc map[string]string
	require.NoError(t, json.Unmarshal(out.Bytes(), &doc))
	assert.Contains(t, doc["error"], "missing.pdf")
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "Version:    dev")
}

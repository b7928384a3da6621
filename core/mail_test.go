package core_test

import (
	"fmt"
	"net/mail"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safnadck/myapplication/core"
	"github.com/safnadck/myapplication/fs"
)

type errLogger struct {
	errors []string
}

func (l *errLogger) Debug(string, ...interface{}) {}
func (l *errLogger) Info(string, ...interface{})  {}
func (l *errLogger) Warn(string, ...interface{})  {}
func (l *errLogger) Error(msg string, _ ...interface{}) {
	l.errors = append(l.errors, msg)
}
func (l *errLogger) Fatal(msg string, _ ...interface{}) {
	l.errors = append(l.errors, msg)
}

func TestParseEmailTemplates_Embedded(t *testing.T) {
	conf := core.NewTestConfig()
	conf.FrontendBaseURL = "https://fees.test.local"
	lg := new(errLogger)

	core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf, lg)
	require.Empty(t, lg.errors)

	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: "Jane Doe", Address: "jane@test.local"}},
		TemplateName: "fee_reminder",
		TemplateData: map[string]interface{}{
			"StudentName": "Jane Doe",
			"BatchName":   "Morning batch",
			"Amount":      "500.00",
			"DueDate":     "2024-03-01",
		},
	}
	require.NoError(t, msg.Render())
	require.True(t, msg.HasContent())

	for name, content := range map[string]string{"text": msg.TextContent, "html": msg.HTMLContent} {
		for _, want := range []string{"Jane Doe", "Morning batch", "500.00", "2024-03-01", conf.FrontendBaseURL} {
			assert.True(t, strings.Contains(content, want), fmt.Sprintf("%s content misses %q: %s", name, want, content))
		}
	}
}

func TestParseEmailTemplates_MissingBase(t *testing.T) {
	conf := core.NewTestConfig()
	lg := new(errLogger)
	defer core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf, lg)

	sub := fstest.MapFS{
		"templates/email/fee_reminder.txt": {Data: []byte(`{{define "content"}}Hello{{end}}`)},
	}
	core.ParseEmailTemplates(sub, appfs.EmailTemplatesDir, conf, lg)
	assert.Len(t, lg.errors, 1)

	msg := &core.EmailMessage{TemplateName: "fee_reminder"}
	require.NoError(t, msg.Render())
	assert.False(t, msg.HasContent())
}

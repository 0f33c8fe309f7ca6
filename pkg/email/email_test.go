package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderAlert(t *testing.T) {
	alert := Alert{
		Subject:    "diagnostics failed",
		Heading:    "2 checks failed",
		Lines:      []string{"storage: 3 missing objects", "build: exit status 1 <stderr>"},
		ReportPath: "reports/diagnostics-20260101-120000.json",
	}

	htmlBody := RenderAlertHTML(alert)
	assert.Contains(t, htmlBody, "2 checks failed")
	assert.Contains(t, htmlBody, "exit status 1 &lt;stderr&gt;")
	assert.Contains(t, htmlBody, "reports/diagnostics-20260101-120000.json")

	text := RenderAlertText(alert)
	assert.Equal(t, "2 checks failed\n\n- storage: 3 missing objects\n- build: exit status 1 <stderr>\n\nReport: reports/diagnostics-20260101-120000.json\n", text)
}

func TestNewResendSender(t *testing.T) {
	s := NewResendSender("re_test", "alerts@khakishop.kr")
	assert.NotNil(t, s)
}

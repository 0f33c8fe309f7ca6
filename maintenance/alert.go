package maintenance

import (
	"context"
	"fmt"
	"strconv"

	"github.com/khakishop/server/pkg/email"
	"github.com/khakishop/server/pkg/i18n"
)

// DiagnosticsAlert builds the alert mail for a report with failures.
// It returns false when there is nothing to report.
func DiagnosticsAlert(report *DiagnosticsReport, reportPath, lang string) (email.Alert, bool) {
	failed := report.FailedChecks()
	if len(failed) == 0 {
		return email.Alert{}, false
	}

	l := i18n.NewLocalizer(lang)
	alert := email.Alert{
		Subject:    l.TWithParams("maint.alertSubject", map[string]string{"count": strconv.Itoa(len(failed))}),
		Heading:    fmt.Sprintf("Diagnostics started %s", report.StartedAt.Format("2006-01-02 15:04:05 MST")),
		ReportPath: reportPath,
	}
	for _, c := range failed {
		alert.Lines = append(alert.Lines, fmt.Sprintf("%s: %s", c.Name, c.Detail))
	}
	return alert, true
}

// SendDiagnosticsAlert mails the failures of report to `to`. It is a no-op
// when every check passed.
func SendDiagnosticsAlert(ctx context.Context, sender email.Sender, to string, report *DiagnosticsReport, reportPath, lang string) (bool, error) {
	alert, ok := DiagnosticsAlert(report, reportPath, lang)
	if !ok {
		return false, nil
	}
	if err := sender.SendAlert(ctx, to, alert); err != nil {
		return false, err
	}
	return true, nil
}

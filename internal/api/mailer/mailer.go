package mailer

import (
	"context"
	"fmt"
	"html"
	"strings"

	gomail "github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// FaultDetail 邮件中展示的单条故障码信息
type FaultDetail struct {
	Code        string
	Description *string
	Severity    *string
}

// Location 最后已知位置
type Location struct {
	Lat     *float64
	Lng     *float64
	Address *string
}

// AlertEmail 故障告警邮件内容
type AlertEmail struct {
	AdminEmail   string
	CustomerName string
	VehicleLabel string
	VIN          string
	FaultCodes   []FaultDetail
	LastLocation *Location
	BookingLink  string
}

// Mailer SMTP 告警邮件发送器
type Mailer struct {
	client *gomail.Client
	from   string
	logger *zap.Logger
}

// New 创建邮件发送器
// 465 端口走隐式 TLS，其余端口走 STARTTLS
func New(host string, port int, user, pass, from string, logger *zap.Logger) (*Mailer, error) {
	opts := []gomail.Option{
		gomail.WithPort(port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(user),
		gomail.WithPassword(pass),
	}
	if port == 465 {
		opts = append(opts, gomail.WithSSL())
	}

	client, err := gomail.NewClient(host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}

	return &Mailer{client: client, from: from, logger: logger}, nil
}

// SendAlert 发送车辆健康告警邮件
func (m *Mailer) SendAlert(ctx context.Context, email AlertEmail) error {
	msg := gomail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("set from address: %w", err)
	}
	if err := msg.To(email.AdminEmail); err != nil {
		return fmt.Errorf("set to address: %w", err)
	}

	msg.Subject(fmt.Sprintf("Vehicle health alert for %s", email.VehicleLabel))
	msg.SetBodyString(gomail.TypeTextHTML, RenderAlertHTML(email))

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}

	m.logger.Debug("Alert email sent",
		zap.String("to", email.AdminEmail),
		zap.String("vehicle", email.VehicleLabel))

	return nil
}

// RenderAlertHTML 渲染告警邮件正文
// 位置信息优先展示地址，其次经纬度，都没有时展示 Not available
func RenderAlertHTML(email AlertEmail) string {
	var faults strings.Builder
	for _, fault := range email.FaultCodes {
		description := "No description"
		if fault.Description != nil {
			description = html.EscapeString(*fault.Description)
		}
		severity := ""
		if fault.Severity != nil {
			severity = fmt.Sprintf(" <em>(Severity: %s)</em>", html.EscapeString(*fault.Severity))
		}
		faults.WriteString(fmt.Sprintf("<li><strong>%s</strong> - %s%s</li>",
			html.EscapeString(fault.Code), description, severity))
	}

	location := "<p><strong>Last Known Location:</strong> Not available</p>"
	if loc := email.LastLocation; loc != nil {
		switch {
		case loc.Address != nil:
			location = fmt.Sprintf("<p><strong>Last Known Location:</strong> %s</p>", html.EscapeString(*loc.Address))
		case loc.Lat != nil && loc.Lng != nil:
			location = fmt.Sprintf("<p><strong>Last Known Location:</strong> %v, %v</p>", *loc.Lat, *loc.Lng)
		}
	}

	return fmt.Sprintf(`
    <h2>Vehicle Health Alert</h2>
    <p>Hello %s Admin,</p>
    <p>The vehicle <strong>%s</strong> (VIN: %s) has reported the following fault codes:</p>
    <ul>%s</ul>
    %s
    <p>
      Please <a href="%s" target="_blank">book a service slot</a> to resolve the issue.
    </p>`,
		html.EscapeString(email.CustomerName),
		html.EscapeString(email.VehicleLabel),
		html.EscapeString(email.VIN),
		faults.String(),
		location,
		email.BookingLink,
	)
}

package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"html"
	"strconv"
	"time"

	"github.com/Maxito7/agenda/internal/domain"
	"github.com/wneessen/go-mail"
)

// Client representa el cliente de correo electrónico
type Client struct {
	host      string
	port      int
	user      string
	password  string
	fromName  string
	fromEmail string
}

// NewClient crea una nueva instancia del cliente de email
func NewClient(host, portStr, user, password, fromName, fromEmail string) (*Client, error) {
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("puerto SMTP inválido: %w", err)
	}

	return &Client{
		host:      host,
		port:      port,
		user:      user,
		password:  password,
		fromName:  fromName,
		fromEmail: fromEmail,
	}, nil
}

func (c *Client) newMsg(to, subject, htmlBody string) (*mail.Msg, error) {
	m := mail.NewMsg()

	if err := m.From(fmt.Sprintf("%s <%s>", c.fromName, c.fromEmail)); err != nil {
		return nil, fmt.Errorf("error al configurar remitente: %w", err)
	}
	if err := m.To(to); err != nil {
		return nil, fmt.Errorf("error al configurar destinatario: %w", err)
	}

	m.Subject(subject)
	m.SetBodyString(mail.TypeTextHTML, htmlBody)
	return m, nil
}

// SendEmail envía un correo electrónico
func (c *Client) SendEmail(ctx context.Context, to, subject, htmlBody string) error {
	m, err := c.newMsg(to, subject, htmlBody)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(c.host,
		mail.WithPort(c.port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(c.user),
		mail.WithPassword(c.password),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithTLSConfig(&tls.Config{
			ServerName: c.host,
		}),
	)
	if err != nil {
		return fmt.Errorf("error al crear cliente SMTP (host=%s port=%d user=%s): %w", c.host, c.port, c.user, err)
	}

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		// Añadir contexto útil al error sin exponer credenciales
		return fmt.Errorf("error al enviar correo (host=%s port=%d user=%s): %w", c.host, c.port, c.user, err)
	}

	return nil
}

// Sender envía un correo HTML
type Sender interface {
	SendEmail(ctx context.Context, to, subject, htmlBody string) error
}

// FailureNotifier avisa por correo cuando un evento de sincronización queda fallido
type FailureNotifier struct {
	sender Sender
	to     string
}

// NewFailureNotifier crea el notificador que escribe a "to"
func NewFailureNotifier(sender Sender, to string) *FailureNotifier {
	return &FailureNotifier{sender: sender, to: to}
}

// NotificarFallo envía la alerta del evento
func (n *FailureNotifier) NotificarFallo(ctx context.Context, ev domain.EventoSync) error {
	subject := fmt.Sprintf("Sincronización fallida: %s de persona #%d hacia %s", ev.Operacion, ev.PersonaID, ev.Destino)
	if err := n.sender.SendEmail(ctx, n.to, subject, generarHTMLFallo(ev)); err != nil {
		return fmt.Errorf("error al enviar alerta del evento %s: %w", ev.EventID, err)
	}
	return nil
}

// generarHTMLFallo genera el cuerpo de la alerta
func generarHTMLFallo(ev domain.EventoSync) string {
	ultimoError := "(sin detalle)"
	if ev.UltimoError != nil {
		ultimoError = *ev.UltimoError
	}

	fila := func(campo, valor string) string {
		return fmt.Sprintf(`
			<tr>
				<td style="padding: 8px; border-bottom: 1px solid #e0e0e0;"><strong>%s</strong></td>
				<td style="padding: 8px; border-bottom: 1px solid #e0e0e0;">%s</td>
			</tr>`, campo, html.EscapeString(valor))
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
	<h2 style="color: #c0392b;">Un evento de sincronización no pudo entregarse</h2>
	<p>El evento agotó sus intentos o fue rechazado por el destino. Revíselo y reintente desde
	<code>POST /api/sync/eventos/%d/reintentar</code>.</p>
	<table style="border-collapse: collapse;">%s%s%s%s%s%s
	</table>
	<h3>Payload</h3>
	<pre style="background: #f5f5f5; padding: 12px;">%s</pre>
</body>
</html>`,
		ev.ID,
		fila("Evento", ev.EventID),
		fila("Destino", ev.Destino),
		fila("Operación", string(ev.Operacion)),
		fila("Persona", strconv.Itoa(ev.PersonaID)),
		fila("Intentos", strconv.Itoa(ev.Intentos)),
		fila("Último error", ultimoError+" ("+ev.ActualizadoEn.Format(time.RFC3339)+")"),
		html.EscapeString(string(ev.Payload)),
	)
}

// Package fastapi replica las personas en la agenda remota expuesta por FastAPI.
package fastapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Maxito7/agenda/internal/domain"
)

// maxErrorBody limita cuánto del cuerpo de error se guarda en el mensaje
const maxErrorBody = 512

// Client llama a los endpoints /personas del servicio remoto
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient crea un cliente para baseURL con el timeout indicado
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// StatusError es una respuesta no exitosa del servicio remoto
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s respondió %d %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Unwrap devuelve domain.ErrSyncRechazado para los 4xx que no se arreglan reintentando
func (e *StatusError) Unwrap() error {
	if e.StatusCode >= 400 && e.StatusCode < 500 &&
		e.StatusCode != http.StatusRequestTimeout && e.StatusCode != http.StatusTooManyRequests {
		return domain.ErrSyncRechazado
	}
	return nil
}

// CrearPersona envía POST /personas/
func (c *Client) CrearPersona(ctx context.Context, payload domain.PersonaPayload) error {
	return c.do(ctx, http.MethodPost, "/personas/", payload, "")
}

// ActualizarPersona envía PUT /personas/{id}
func (c *Client) ActualizarPersona(ctx context.Context, id int, payload domain.PersonaPayload) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/personas/%d", id), payload, "")
}

// EliminarPersona envía DELETE /personas/{id}. Un 404 cuenta como éxito.
func (c *Client) EliminarPersona(ctx context.Context, id int) error {
	err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/personas/%d", id), nil, "")
	if se, ok := err.(*StatusError); ok && se.StatusCode == http.StatusNotFound {
		return nil
	}
	return err
}

// Entregar traduce un evento del outbox a la llamada correspondiente.
// El event_id viaja en Idempotency-Key para que el remoto pueda descartar duplicados.
func (c *Client) Entregar(ctx context.Context, ev domain.EventoSync) error {
	path := fmt.Sprintf("/personas/%d", ev.PersonaID)

	switch ev.Operacion {
	case domain.OperacionCrear, domain.OperacionActualizar:
		payload, err := ev.PersonaPayload()
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrSyncRechazado, err)
		}
		if ev.Operacion == domain.OperacionCrear {
			return c.do(ctx, http.MethodPost, "/personas/", payload, ev.EventID)
		}
		return c.do(ctx, http.MethodPut, path, payload, ev.EventID)
	case domain.OperacionEliminar:
		err := c.do(ctx, http.MethodDelete, path, nil, ev.EventID)
		if se, ok := err.(*StatusError); ok && se.StatusCode == http.StatusNotFound {
			return nil
		}
		return err
	default:
		return fmt.Errorf("%w: operación desconocida %q", domain.ErrSyncRechazado, ev.Operacion)
	}
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, idempotencyKey string) error {
	url := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("error al serializar cuerpo: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("error al crear petición: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error al llamar %s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{
		Method:     method,
		URL:        url,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(respBody)),
	}
}

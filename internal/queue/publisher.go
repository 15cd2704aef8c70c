// Package queue publica los eventos de sincronización en RabbitMQ.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/Maxito7/agenda/internal/domain"
	"github.com/Maxito7/agenda/internal/logger"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	exchangeTopic = "topic"
	maxRetries    = 7
)

var (
	amqpDial = amqp.Dial
	esperar  = time.Sleep
)

// channel es la parte de *amqp.Channel que usa el publicador
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// conexion es una sesión AMQP abierta. cerrada recibe el error cuando el broker
// corta el canal o la conexión, y se cierra sin valor en un cierre ordenado.
type conexion struct {
	ch      channel
	conn    io.Closer
	cerrada <-chan *amqp.Error
}

func (c *conexion) cerrar() {
	c.ch.Close()
	if c.conn != nil {
		c.conn.Close()
	}
}

type dialer func() (*conexion, error)

// Mensaje es el cuerpo publicado para cada evento
type Mensaje struct {
	EventID   string          `json:"event_id"`
	Operacion string          `json:"operacion"`
	PersonaID int             `json:"persona_id"`
	Persona   json.RawMessage `json:"persona"`
}

// Publisher publica en un exchange topic con routing key persona.<operacion>.
// Si el broker cierra la sesión, reconecta en segundo plano.
type Publisher struct {
	mu       sync.Mutex
	actual   *conexion
	dial     dialer
	exchange string
	log      *logger.Logger
	done     chan struct{}
	// espera entre rondas de reconexión fallidas
	espera time.Duration
}

// Connect abre la conexión con reintentos y declara el exchange
func Connect(url, exchange string, log *logger.Logger) (*Publisher, error) {
	dial := func() (*conexion, error) {
		conn, err := dialWithRetry(url, log)
		if err != nil {
			return nil, fmt.Errorf("error al conectar con RabbitMQ: %w", err)
		}

		ch, err := conn.Channel()
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("error al abrir canal de RabbitMQ: %w", err)
		}

		// el canal también se notifica cuando cae la conexión
		cerrada := ch.NotifyClose(make(chan *amqp.Error, 1))
		return &conexion{ch: ch, conn: conn, cerrada: cerrada}, nil
	}

	return newPublisher(dial, exchange, log)
}

func newPublisher(dial dialer, exchange string, log *logger.Logger) (*Publisher, error) {
	p := &Publisher{
		dial:     dial,
		exchange: exchange,
		log:      log.With("component", "rabbitmq"),
		done:     make(chan struct{}),
		espera:   5 * time.Second,
	}

	c, err := p.abrir()
	if err != nil {
		return nil, err
	}
	p.actual = c

	go p.vigilar(c)
	return p, nil
}

func (p *Publisher) abrir() (*conexion, error) {
	c, err := p.dial()
	if err != nil {
		return nil, err
	}

	err = c.ch.ExchangeDeclare(
		p.exchange,    // name
		exchangeTopic, // type
		true,          // durable
		false,         // auto-deleted
		false,         // internal
		false,         // no-wait
		nil,           // arguments
	)
	if err != nil {
		c.cerrar()
		return nil, fmt.Errorf("error al declarar exchange %s: %w", p.exchange, err)
	}
	return c, nil
}

// vigilar espera el cierre de la sesión actual y la reemplaza
func (p *Publisher) vigilar(c *conexion) {
	for {
		select {
		case <-p.done:
			return
		case amqpErr, ok := <-c.cerrada:
			if !ok || amqpErr == nil {
				return
			}

			p.log.Warnf("Conexión con RabbitMQ perdida: %v. Reconectando...", amqpErr)
			p.mu.Lock()
			p.actual = nil
			p.mu.Unlock()
			c.cerrar()

			if c = p.reconectar(); c == nil {
				return
			}
		}
	}
}

func (p *Publisher) reconectar() *conexion {
	for {
		c, err := p.abrir()
		if err == nil {
			p.mu.Lock()
			select {
			case <-p.done:
				p.mu.Unlock()
				c.cerrar()
				return nil
			default:
			}
			p.actual = c
			p.mu.Unlock()

			p.log.Info("Conexión con RabbitMQ restablecida")
			return c
		}

		p.log.Errorf(err, "No se pudo reconectar con RabbitMQ")
		select {
		case <-p.done:
			return nil
		case <-time.After(p.espera):
		}
	}
}

func dialWithRetry(url string, log *logger.Logger) (*amqp.Connection, error) {
	var conn *amqp.Connection
	var err error
	waitTime := 1 * time.Second

	for i := 0; i < maxRetries; i++ {
		conn, err = amqpDial(url)
		if err == nil {
			return conn, nil
		}
		if i == maxRetries-1 {
			break
		}
		log.Warnf("Intento %d de conexión a RabbitMQ falló: %v. Reintentando en %v...", i+1, err, waitTime)
		esperar(waitTime)
		waitTime = time.Duration(math.Pow(2, float64(i+1))) * time.Second
	}
	return nil, err
}

// RoutingKey devuelve la clave de ruteo de una operación
func RoutingKey(op domain.OperacionSync) string {
	return "persona." + string(op)
}

// Entregar publica el evento como mensaje persistente. Sin conexión devuelve
// un error transitorio y el outbox lo reintenta.
func (p *Publisher) Entregar(ctx context.Context, ev domain.EventoSync) error {
	body, err := json.Marshal(Mensaje{
		EventID:   ev.EventID,
		Operacion: string(ev.Operacion),
		PersonaID: ev.PersonaID,
		Persona:   ev.Payload,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSyncRechazado, err)
	}

	p.mu.Lock()
	c := p.actual
	p.mu.Unlock()
	if c == nil {
		return fmt.Errorf("error al publicar evento %s: %w", ev.EventID, amqp.ErrClosed)
	}

	err = c.ch.PublishWithContext(ctx,
		p.exchange,
		RoutingKey(ev.Operacion),
		false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    ev.EventID,
			Body:         body,
			Timestamp:    time.Now(),
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("error al publicar evento %s: %w", ev.EventID, err)
	}
	return nil
}

// Close detiene la reconexión y cierra canal y conexión
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	select {
	case <-p.done:
		return
	default:
		close(p.done)
	}
	if p.actual != nil {
		p.actual.cerrar()
		p.actual = nil
	}
}

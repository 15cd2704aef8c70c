package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Maxito7/agenda/internal/domain"
	"github.com/Maxito7/agenda/internal/logger"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	mu         sync.Mutex
	declared   string
	kind       string
	declareErr error
	publishErr error
	published  []amqp.Publishing
	keys       []string
	closed     bool
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.declared = name
	f.kind = kind
	return f.declareErr
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.keys = append(f.keys, exchange+"/"+key)
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeChannel) romper() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.publishErr = amqp.ErrClosed
}

func (f *fakeChannel) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeChannel) publicados() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

// fakeBroker entrega un canal nuevo por cada conexión
type fakeBroker struct {
	mu         sync.Mutex
	canales    []*fakeChannel
	cierres    []chan *amqp.Error
	fallos     int
	declareErr error
}

func (b *fakeBroker) dial() (*conexion, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fallos > 0 {
		b.fallos--
		return nil, errors.New("connection refused")
	}

	ch := &fakeChannel{declareErr: b.declareErr}
	cierre := make(chan *amqp.Error, 1)
	b.canales = append(b.canales, ch)
	b.cierres = append(b.cierres, cierre)
	return &conexion{ch: ch, cerrada: cierre}, nil
}

func (b *fakeBroker) canal(i int) *fakeChannel {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.canales[i]
}

func (b *fakeBroker) conexiones() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.canales)
}

func evento(t *testing.T) domain.EventoSync {
	ev, err := domain.NewEventoSync(domain.DestinoRabbitMQ, domain.OperacionCrear,
		&domain.Persona{ID: 3, Nombre: "Ana", Email: "ana@x.com"}, time.Now())
	require.NoError(t, err)
	return *ev
}

func TestNewPublisherDeclaresTopicExchange(t *testing.T) {
	b := &fakeBroker{}
	p, err := newPublisher(b.dial, "agenda.personas", logger.Nop())
	require.NoError(t, err)
	defer p.Close()

	ch := b.canal(0)
	assert.Equal(t, "agenda.personas", ch.declared)
	assert.Equal(t, "topic", ch.kind)
}

func TestNewPublisherClosesChannelOnDeclareError(t *testing.T) {
	b := &fakeBroker{declareErr: errors.New("acceso denegado")}
	_, err := newPublisher(b.dial, "agenda.personas", logger.Nop())

	assert.ErrorContains(t, err, "acceso denegado")
	assert.True(t, b.canal(0).isClosed())
}

func TestNewPublisherReturnsDialError(t *testing.T) {
	b := &fakeBroker{fallos: 1}
	_, err := newPublisher(b.dial, "agenda.personas", logger.Nop())

	assert.ErrorContains(t, err, "connection refused")
	assert.Zero(t, b.conexiones())
}

func TestEntregarPublishesPersistentMessage(t *testing.T) {
	b := &fakeBroker{}
	p, err := newPublisher(b.dial, "agenda.personas", logger.Nop())
	require.NoError(t, err)
	defer p.Close()

	ev := evento(t)
	require.NoError(t, p.Entregar(context.Background(), ev))

	ch := b.canal(0)
	require.Len(t, ch.published, 1)

	msg := ch.published[0]
	assert.Equal(t, "agenda.personas/persona.crear", ch.keys[0])
	assert.Equal(t, ev.EventID, msg.MessageId)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, "application/json", msg.ContentType)

	var body Mensaje
	require.NoError(t, json.Unmarshal(msg.Body, &body))
	assert.Equal(t, 3, body.PersonaID)
	assert.Equal(t, "crear", body.Operacion)
	assert.JSONEq(t, string(ev.Payload), string(body.Persona))
}

func TestEntregarWrapsPublishError(t *testing.T) {
	b := &fakeBroker{}
	p, err := newPublisher(b.dial, "agenda.personas", logger.Nop())
	require.NoError(t, err)
	defer p.Close()
	b.canal(0).romper()

	err = p.Entregar(context.Background(), domain.EventoSync{EventID: "ev-1", Operacion: domain.OperacionEliminar, Payload: json.RawMessage(`{}`)})
	assert.ErrorIs(t, err, amqp.ErrClosed)
	assert.NotErrorIs(t, err, domain.ErrSyncRechazado)
}

func TestPublisherReconnectsAfterBrokerClose(t *testing.T) {
	b := &fakeBroker{}
	p, err := newPublisher(b.dial, "agenda.personas", logger.Nop())
	require.NoError(t, err)
	defer p.Close()
	p.espera = 10 * time.Millisecond

	// la primera reconexión falla y la segunda prospera
	b.mu.Lock()
	b.fallos = 1
	cierre := b.cierres[0]
	b.mu.Unlock()

	primero := b.canal(0)
	primero.romper()
	cierre <- &amqp.Error{Code: amqp.ConnectionForced, Reason: "broker reiniciado"}

	ev := evento(t)
	assert.Eventually(t, func() bool {
		return p.Entregar(context.Background(), ev) == nil
	}, 2*time.Second, 5*time.Millisecond)

	require.Equal(t, 2, b.conexiones())
	segundo := b.canal(1)
	assert.True(t, primero.isClosed())
	assert.Equal(t, 1, segundo.publicados())
	assert.Equal(t, "agenda.personas", segundo.declared)
}

func TestEntregarWithoutConnectionIsTransient(t *testing.T) {
	b := &fakeBroker{}
	p, err := newPublisher(b.dial, "agenda.personas", logger.Nop())
	require.NoError(t, err)
	p.Close()

	err = p.Entregar(context.Background(), evento(t))
	assert.ErrorIs(t, err, amqp.ErrClosed)
	assert.NotErrorIs(t, err, domain.ErrSyncRechazado)
	assert.True(t, b.canal(0).isClosed())
}

func TestCloseStopsReconnect(t *testing.T) {
	b := &fakeBroker{}
	p, err := newPublisher(b.dial, "agenda.personas", logger.Nop())
	require.NoError(t, err)

	p.Close()
	p.Close()

	b.mu.Lock()
	b.cierres[0] <- &amqp.Error{Code: amqp.ConnectionForced}
	b.mu.Unlock()

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, b.conexiones())
}

func TestDialWithRetryDoesNotWaitAfterLastAttempt(t *testing.T) {
	origDial, origEsperar := amqpDial, esperar
	defer func() { amqpDial, esperar = origDial, origEsperar }()

	intentos := 0
	amqpDial = func(url string) (*amqp.Connection, error) {
		intentos++
		return nil, errors.New("connection refused")
	}
	var esperas []time.Duration
	esperar = func(d time.Duration) { esperas = append(esperas, d) }

	_, err := dialWithRetry("amqp://localhost", logger.Nop())
	assert.ErrorContains(t, err, "connection refused")
	assert.Equal(t, maxRetries, intentos)
	require.Len(t, esperas, maxRetries-1)
	assert.Equal(t, time.Second, esperas[0])
	assert.Equal(t, 2*time.Second, esperas[1])
}

func TestRoutingKey(t *testing.T) {
	assert.Equal(t, "persona.eliminar", RoutingKey(domain.OperacionEliminar))
}

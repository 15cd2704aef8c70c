package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Maxito7/agenda/internal/domain"
	"github.com/Maxito7/agenda/internal/logger"
	"github.com/Maxito7/agenda/internal/metrics"
	"golang.org/x/time/rate"
)

// SyncDeliverer entrega un evento a un destino concreto
type SyncDeliverer interface {
	Entregar(ctx context.Context, ev domain.EventoSync) error
}

// FailureNotifier recibe los eventos que quedaron fallidos
type FailureNotifier interface {
	NotificarFallo(ctx context.Context, ev domain.EventoSync) error
}

// PoliticaReintento define cuántas veces y con qué espera se reintenta
type PoliticaReintento struct {
	MaxIntentos int
	Base        time.Duration
	Max         time.Duration
}

// Espera devuelve base·2^(intentos-1), acotado por Max
func (p PoliticaReintento) Espera(intentos int) time.Duration {
	d := p.Base
	for i := 1; i < intentos; i++ {
		d *= 2
		if p.Max > 0 && d >= p.Max {
			return p.Max
		}
	}
	if p.Max > 0 && d > p.Max {
		return p.Max
	}
	return d
}

// DispatcherConfig agrupa los parámetros del worker
type DispatcherConfig struct {
	BatchSize int
	Lease     time.Duration
	Politica  PoliticaReintento
	// Limiter nil desactiva el control de ritmo
	Limiter *rate.Limiter
}

type SyncDispatcher struct {
	outbox    domain.OutboxRepository
	destinos  map[string]SyncDeliverer
	notifiers []FailureNotifier
	cfg       DispatcherConfig
	log       *logger.Logger
	now       func() time.Time
}

// NewSyncDispatcher crea el worker que vacía el outbox
func NewSyncDispatcher(
	outbox domain.OutboxRepository,
	destinos map[string]SyncDeliverer,
	notifiers []FailureNotifier,
	cfg DispatcherConfig,
	log *logger.Logger,
) *SyncDispatcher {
	return &SyncDispatcher{
		outbox:    outbox,
		destinos:  destinos,
		notifiers: notifiers,
		cfg:       cfg,
		log:       log.With("component", "sync_dispatcher"),
		now:       time.Now,
	}
}

// ProcesarPendientes reclama un lote y lo entrega. Devuelve cuántos eventos se procesaron.
func (d *SyncDispatcher) ProcesarPendientes(ctx context.Context) (int, error) {
	eventos, err := d.outbox.ReclamarPendientes(ctx, d.now(), d.cfg.Lease, d.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	procesados := 0
	for _, ev := range eventos {
		if d.cfg.Limiter != nil {
			// los eventos no procesados vuelven a estar disponibles al vencer el lease
			if err := d.cfg.Limiter.Wait(ctx); err != nil {
				return procesados, err
			}
		}
		if err := d.procesar(ctx, ev); err != nil {
			return procesados, err
		}
		procesados++
	}

	if procesados > 0 {
		d.log.Debugf("Lote de sincronización procesado: %d eventos", procesados)
	}
	return procesados, nil
}

func (d *SyncDispatcher) procesar(ctx context.Context, ev domain.EventoSync) error {
	inicio := time.Now()
	errEntrega := d.entregar(ctx, ev)
	duracion := time.Since(inicio)
	intentos := ev.Intentos + 1

	if errEntrega == nil {
		if err := d.outbox.MarcarEntregado(ctx, ev); err != nil {
			return d.reclamoPerdido(ev, err)
		}
		metrics.RecordSyncDelivery(ev.Destino, metrics.ResultadoEntregado, duracion)
		return nil
	}

	msg := errEntrega.Error()
	if errors.Is(errEntrega, domain.ErrSyncRechazado) || intentos >= d.cfg.Politica.MaxIntentos {
		if err := d.outbox.MarcarFallido(ctx, ev, intentos, msg); err != nil {
			return d.reclamoPerdido(ev, err)
		}
		metrics.RecordSyncDelivery(ev.Destino, metrics.ResultadoFallido, duracion)
		d.log.Errorf(errEntrega, "Evento %s (%s persona %d hacia %s) fallido tras %d intentos",
			ev.EventID, ev.Operacion, ev.PersonaID, ev.Destino, intentos)

		ev.Intentos = intentos
		ev.Estado = domain.EstadoFallido
		ev.UltimoError = &msg
		ev.ActualizadoEn = d.now()
		d.notificar(ctx, ev)
		return nil
	}

	proximo := d.now().Add(d.cfg.Politica.Espera(intentos))
	if err := d.outbox.MarcarReintento(ctx, ev, intentos, proximo, msg); err != nil {
		return d.reclamoPerdido(ev, err)
	}
	metrics.RecordSyncDelivery(ev.Destino, metrics.ResultadoReintento, duracion)
	d.log.Warnf("Evento %s hacia %s falló (intento %d): %v. Próximo intento %s",
		ev.EventID, ev.Destino, intentos, errEntrega, proximo.Format(time.RFC3339))
	return nil
}

// reclamoPerdido descarta el resultado cuando otro worker ya tomó el evento
func (d *SyncDispatcher) reclamoPerdido(ev domain.EventoSync, err error) error {
	if errors.Is(err, domain.ErrReclamoVencido) {
		d.log.Warnf("Evento %s reclamado por otro worker tras vencer el lease; se descarta el resultado", ev.EventID)
		return nil
	}
	return err
}

func (d *SyncDispatcher) entregar(ctx context.Context, ev domain.EventoSync) error {
	deliverer, ok := d.destinos[ev.Destino]
	if !ok {
		return fmt.Errorf("%w: destino desconocido %q", domain.ErrSyncRechazado, ev.Destino)
	}
	return deliverer.Entregar(ctx, ev)
}

func (d *SyncDispatcher) notificar(ctx context.Context, ev domain.EventoSync) {
	for _, n := range d.notifiers {
		if err := n.NotificarFallo(ctx, ev); err != nil {
			d.log.Errorf(err, "Error al notificar el fallo del evento %s", ev.EventID)
		}
	}
}

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Maxito7/agenda/internal/logger"
	"github.com/robfig/cron/v3"
)

// Procesador vacía un lote del outbox
type Procesador interface {
	ProcesarPendientes(ctx context.Context) (int, error)
}

type OutboxScheduler struct {
	procesador Procesador
	schedule   string
	cron       *cron.Cron
	log        *logger.Logger
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// NewOutboxScheduler crea el scheduler que entrega los eventos pendientes
func NewOutboxScheduler(procesador Procesador, schedule string, log *logger.Logger) *OutboxScheduler {
	log = log.With("component", "outbox_scheduler")
	cronLog := log.ForCron()
	ctx, cancel := context.WithCancel(context.Background())

	return &OutboxScheduler{
		procesador: procesador,
		schedule:   schedule,
		cron: cron.New(
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start programa el job y lo ejecuta una vez de inmediato
func (s *OutboxScheduler) Start() error {
	id, err := s.cron.AddFunc(s.schedule, s.ProcesarPendientes)
	if err != nil {
		return fmt.Errorf("schedule de outbox inválido %q: %w", s.schedule, err)
	}

	// WrappedJob pasa por SkipIfStillRunning: no se solapa con la primera ejecución programada
	job := s.cron.Entry(id).WrappedJob
	s.cron.Start()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		job.Run()
	}()

	s.log.Infof("Scheduler de outbox iniciado (%s)", s.schedule)
	return nil
}

// Stop cancela el lote en curso y espera a que termine
func (s *OutboxScheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.log.Info("Scheduler de outbox detenido")
}

// ProcesarPendientes ejecuta un lote
func (s *OutboxScheduler) ProcesarPendientes() {
	n, err := s.procesador.ProcesarPendientes(s.ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.log.Error(err, "Error procesando eventos de sincronización")
		return
	}
	if n > 0 {
		s.log.Infof("Eventos de sincronización procesados: %d", n)
	}
}

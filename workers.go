package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/negroni/v2"

	"fknsrs.biz/p/vidshare/handlers"
	"fknsrs.biz/p/vidshare/internal/ctxauth"
	"fknsrs.biz/p/vidshare/internal/ctxclock"
	"fknsrs.biz/p/vidshare/internal/ctxconfig"
	"fknsrs.biz/p/vidshare/internal/ctxdb"
	"fknsrs.biz/p/vidshare/internal/ctxgeneration"
	"fknsrs.biz/p/vidshare/internal/ctxhttpclient"
	"fknsrs.biz/p/vidshare/internal/ctxjobqueue"
	"fknsrs.biz/p/vidshare/internal/ctxlogger"
	"fknsrs.biz/p/vidshare/internal/ctxobjectstore"
	"fknsrs.biz/p/vidshare/internal/ctxtimer"
	"fknsrs.biz/p/vidshare/internal/ctxtranscoder"
	"fknsrs.biz/p/vidshare/internal/ratelimit"
)

type worker struct {
	name string
	run  func(ctx context.Context) error
}

// runAllWorkers keeps every worker running until ctx is done. A worker that
// returns an error cancels the others, and each is started again after a
// short pause.
func runAllWorkers(ctx context.Context, workers []worker) error {
	done := make(chan error, len(workers))
	cancellers := make([]context.CancelCauseFunc, len(workers))

	var rw sync.RWMutex

	for id, w := range workers {
		go func(id int, w worker) {
			for {
				l := ctxlogger.GetLogger(ctx).WithFields(logrus.Fields{
					"worker.id":   id + 1,
					"worker.name": w.name,
				})

				wctx, cancel := context.WithCancelCause(ctxlogger.WithLogger(ctx, l))

				rw.Lock()
				cancellers[id] = cancel
				rw.Unlock()

				err := w.run(wctx)
				cause := context.Cause(wctx)
				cancel(nil)

				if ctx.Err() != nil {
					done <- nil
					return
				}

				if cause != nil {
					l.WithError(cause).Info("worker cancelled")
				} else if err != nil {
					l.WithError(err).Error("worker failed")

					rw.RLock()
					for i, fn := range cancellers {
						if fn == nil || i == id {
							continue
						}

						fn(fmt.Errorf("worker %d (%s) failed: %w", id+1, w.name, err))
					}
					rw.RUnlock()
				} else {
					l.Info("worker restarted")
				}

				time.Sleep(time.Second)
			}
		}(id, w)
	}

	var errs []error
	for range workers {
		if err := <-done; err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

func runApplicationWorker(ctx context.Context, addr string, limiter *ratelimit.Limiter) error {
	l := ctxlogger.GetLogger(ctx)

	l.WithFields(logrus.Fields{
		"args.addr": addr,
	}).Info("running application worker")

	c := ctxconfig.GetConfig(ctx)

	n := negroni.New()
	n.Use(negroni.NewRecovery())
	n.UseFunc(ctxlogger.Register(l))
	n.UseFunc(ctxtimer.Register())
	n.UseFunc(ctxclock.Register(ctxclock.GetClock(ctx)))
	n.UseFunc(ctxconfig.Register(c))
	n.UseFunc(ctxdb.Register(ctxdb.GetDB(ctx)))
	n.UseFunc(ctxhttpclient.Register(ctxhttpclient.GetHTTPClient(ctx)))
	n.UseFunc(ctxjobqueue.Register(ctxjobqueue.GetWorker(ctx)))
	n.UseFunc(ctxobjectstore.Register(ctxobjectstore.GetStore(ctx)))
	n.UseFunc(ctxtranscoder.Register(ctxtranscoder.GetAPI(ctx)))
	n.UseFunc(ctxgeneration.Register(ctxgeneration.GetGenerator(ctx)))
	n.UseFunc(ctxtimer.AddLoggerHooks())
	n.UseFunc(ctxclock.AddLoggerHooks())
	n.UseFunc(ctxlogger.Log())
	n.UseFunc(ctxauth.Register(ctxauth.NewVerifier(c.AuthSecret, c.AuthIssuer)))
	n.UseFunc(limiter.Middleware())

	n.UseHandler(handlers.Router())

	s := &http.Server{
		Addr:              addr,
		Handler:           n,
		ReadHeaderTimeout: time.Second * 10,
		BaseContext:       func(l net.Listener) context.Context { return ctx },
	}

	errs := make(chan error, 1)
	go func() {
		l.Info("starting server")
		errs <- s.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second*10)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

func runJobQueueWorker(ctx context.Context) error {
	l := ctxlogger.GetLogger(ctx)

	l.Info("running job queue worker")

	w := ctxjobqueue.GetWorker(ctx)
	if w == nil {
		return fmt.Errorf("job queue worker not available in context")
	}

	return w.Run(ctx)
}

package handlers

import (
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
	svix "github.com/svix/svix-webhooks/go"

	"fknsrs.biz/p/vidshare/internal/apierror"
	"fknsrs.biz/p/vidshare/internal/ctxclock"
	"fknsrs.biz/p/vidshare/internal/ctxconfig"
	"fknsrs.biz/p/vidshare/internal/ctxlogger"
	"fknsrs.biz/p/vidshare/internal/httputil"
	"fknsrs.biz/p/vidshare/internal/transcoding"
	"fknsrs.biz/p/vidshare/internal/users"
	"fknsrs.biz/p/vidshare/internal/webhooksig"
)

const webhookReceived = "Webhook received"

func TranscoderWebhook(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	header := r.Header.Get("mux-signature")
	if header == "" {
		httputil.Error(rw, r, apierror.New(apierror.Unauthorized, "missing webhook signature"))
		return
	}

	secret := ctxconfig.GetConfig(ctx).TranscoderWebhookSecret
	if secret == "" {
		httputil.Error(rw, r, apierror.New(apierror.InternalServerError, "transcoder webhook secret is not configured"))
		return
	}

	body, err := readBody(r)
	if err != nil {
		httputil.Error(rw, r, err)
		return
	}

	if err := webhooksig.VerifyTranscoder(body, header, secret, ctxclock.NowOrReal(ctx), webhooksig.DefaultTolerance); err != nil {
		httputil.Error(rw, r, apierror.Wrap(apierror.BadRequest, err, "invalid webhook signature"))
		return
	}

	ev, err := transcoding.ParseEvent(body)
	if err != nil {
		httputil.Error(rw, r, err)
		return
	}

	res, err := transcoding.Apply(ctx, ev)
	if err != nil {
		httputil.Error(rw, r, err)
		return
	}

	ctxlogger.GetLogger(ctx).WithFields(logrus.Fields{
		"webhook.type":     ev.Type,
		"webhook.video_id": res.VideoID,
		"webhook.changed":  res.Changed,
	}).Info("transcoder webhook applied")

	httputil.WriteText(rw, r, http.StatusOK, webhookReceived)
}

func IdentityWebhook(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id := r.Header.Get("svix-id")
	if id == "" || r.Header.Get("svix-timestamp") == "" || r.Header.Get("svix-signature") == "" {
		httputil.Error(rw, r, apierror.New(apierror.BadRequest, "missing webhook headers"))
		return
	}

	secret := ctxconfig.GetConfig(ctx).IdentityWebhookSecret
	if secret == "" {
		httputil.Error(rw, r, apierror.New(apierror.InternalServerError, "identity webhook secret is not configured"))
		return
	}

	wh, err := svix.NewWebhook(secret)
	if err != nil {
		httputil.Error(rw, r, fmt.Errorf("handlers.IdentityWebhook: could not load signing secret: %w", err))
		return
	}

	body, err := readBody(r)
	if err != nil {
		httputil.Error(rw, r, err)
		return
	}

	if err := wh.Verify(body, r.Header); err != nil {
		httputil.Error(rw, r, apierror.Wrap(apierror.BadRequest, err, "invalid webhook signature"))
		return
	}

	ev, err := users.ParseIdentityEvent(body)
	if err != nil {
		httputil.Error(rw, r, err)
		return
	}

	if err := users.ApplyIdentityEvent(ctx, ev); err != nil {
		httputil.Error(rw, r, err)
		return
	}

	ctxlogger.GetLogger(ctx).WithFields(logrus.Fields{
		"webhook.id":   id,
		"webhook.type": ev.Type,
	}).Info("identity webhook applied")

	httputil.WriteText(rw, r, http.StatusOK, webhookReceived)
}

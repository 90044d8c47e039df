package users

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"fknsrs.biz/p/sorm"
	"github.com/Jeffail/gabs/v2"
	"github.com/sirupsen/logrus"

	"fknsrs.biz/p/vidshare/internal/apierror"
	"fknsrs.biz/p/vidshare/internal/ctxauth"
	"fknsrs.biz/p/vidshare/internal/ctxclock"
	"fknsrs.biz/p/vidshare/internal/ctxdb"
	"fknsrs.biz/p/vidshare/internal/ctxlogger"
	"fknsrs.biz/p/vidshare/models"
)

const (
	EventUserCreated = "user.created"
	EventUserUpdated = "user.updated"
	EventUserDeleted = "user.deleted"
)

type IdentityEvent struct {
	Type string
	Data *gabs.Container
}

func ParseIdentityEvent(body []byte) (*IdentityEvent, error) {
	j, err := gabs.ParseJSON(body)
	if err != nil {
		return nil, apierror.Wrap(apierror.BadRequest, err, "invalid event body")
	}

	typ, _ := j.Path("type").Data().(string)
	if typ == "" {
		return nil, apierror.New(apierror.BadRequest, "event has no type")
	}

	return &IdentityEvent{Type: typ, Data: j.Path("data")}, nil
}

func displayName(data *gabs.Container) string {
	var parts []string
	for _, p := range []string{"first_name", "last_name"} {
		if s, ok := data.Path(p).Data().(string); ok && strings.TrimSpace(s) != "" {
			parts = append(parts, strings.TrimSpace(s))
		}
	}

	if len(parts) == 0 {
		if s, ok := data.Path("username").Data().(string); ok {
			return s
		}
	}

	return strings.Join(parts, " ")
}

// ApplyIdentityEvent mirrors an identity provider user event into the users
// table. Deleting a user removes everything they own.
func ApplyIdentityEvent(ctx context.Context, ev *IdentityEvent) error {
	switch ev.Type {
	case EventUserCreated, EventUserUpdated, EventUserDeleted:
	default:
		ctxlogger.GetLogger(ctx).WithField("identity.event_type", ev.Type).Debug("ignoring identity event")
		return nil
	}

	if ev.Data == nil {
		return apierror.New(apierror.BadRequest, "event has no data")
	}

	externalID, _ := ev.Data.Path("id").Data().(string)
	if externalID == "" {
		return apierror.New(apierror.BadRequest, "event data has no id")
	}

	l := ctxlogger.GetLogger(ctx).WithFields(logrus.Fields{"identity.event_type": ev.Type, "identity.user_id": externalID})

	if err := ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
		existing, err := ctxauth.FindUserByExternalID(ctx, tx, externalID)
		if err != nil {
			return err
		}

		if ev.Type == EventUserDeleted {
			if existing == nil {
				return nil
			}

			if _, err := tx.ExecContext(ctx, "delete from users where id = ?", existing.ID); err != nil {
				return fmt.Errorf("could not delete user: %w", err)
			}

			l.Info("deleted user")

			return nil
		}

		now := ctxclock.NowOrReal(ctx)
		imageURL, _ := ev.Data.Path("image_url").Data().(string)

		u := existing
		if u == nil {
			u = &models.User{CreatedAt: now, ExternalID: externalID}
		}

		u.Name = displayName(ev.Data)
		u.ImageURL = imageURL
		u.UpdatedAt = now

		if existing == nil {
			if err := sorm.CreateRecord(ctx, tx, u); err != nil {
				return fmt.Errorf("could not create user: %w", err)
			}

			l.WithField("user.id", u.ID).Info("created user")

			return nil
		}

		if err := sorm.SaveRecord(ctx, tx, u); err != nil {
			return fmt.Errorf("could not update user: %w", err)
		}

		l.WithField("user.id", u.ID).Info("updated user")

		return nil
	}); err != nil {
		return fmt.Errorf("users.ApplyIdentityEvent: %w", err)
	}

	return nil
}

package courier

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/toko-commerce/internal/common"
	"github.com/noah-isme/toko-commerce/internal/httpx"
	"github.com/noah-isme/toko-commerce/internal/obs"
	"github.com/noah-isme/toko-commerce/internal/tasks"
)

// SignatureHeader carries hex(HMAC-SHA256(webhook_secret, body)).
const SignatureHeader = "X-Webhook-Signature"

const maxWebhookBody = 256 << 10

// WebhookCORS sets permissive CORS headers for provider callbacks and answers
// preflight requests directly.
func WebhookCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+SignatureHeader)
		h.Set("Access-Control-Max-Age", "600")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SignatureVerifier authenticates webhook bodies against the active
// credential of the provider named in the {provider} path parameter.
type SignatureVerifier struct {
	Store  Store
	Errors httpx.ErrorHandler
}

// Middleware rejects unsigned or mis-signed webhooks with 401.
func (v SignatureVerifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		code := strings.ToLower(chi.URLParam(r, "provider"))
		provider, err := v.Store.ProviderByCode(r.Context(), code)
		if err == nil && !provider.IsActive {
			err = common.NotFound("courier provider")
		}
		if err != nil {
			obs.Inc(obs.CourierWebhookTotal, "unknown", "unknown_provider")
			v.Errors.Handle(w, r, err)
			return
		}
		cred, err := v.Store.ActiveCredential(r.Context(), provider.ID)
		if err != nil {
			v.Errors.Handle(w, r, err)
			return
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody+1))
		_ = r.Body.Close()
		if err != nil || len(body) > maxWebhookBody {
			common.JSONError(w, http.StatusBadRequest, "unable to read payload", "BAD_REQUEST")
			return
		}
		if cred.WebhookSecret == "" || !ValidSignature(cred.WebhookSecret, body, r.Header.Get(SignatureHeader)) {
			obs.Inc(obs.CourierWebhookTotal, provider.Code, "bad_signature")
			v.Errors.Handle(w, r, common.Unauthorized("invalid webhook signature"))
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		ctx := WithCredential(WithProvider(r.Context(), provider), cred)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Sign returns the hex signature of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// ValidSignature compares signature against body in constant time. An
// optional "sha256=" prefix is accepted.
func ValidSignature(secret string, body []byte, signature string) bool {
	signature = strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	got, err := hex.DecodeString(signature)
	if err != nil || len(got) == 0 {
		return false
	}
	want, _ := hex.DecodeString(Sign(secret, body))
	return hmac.Equal(got, want)
}

// Enqueuer is the subset of asynq.Client used to hand events to the worker.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type replayStore interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Webhook accepts verified courier status events and queues them.
type Webhook struct {
	Queue     Enqueuer
	Replay    replayStore
	ReplayTTL time.Duration
	Now       func() time.Time
}

type webhookPayload struct {
	ConsignmentID json.Number `json:"consignment_id"`
	TrackingCode  string      `json:"tracking_code"`
	Status        string      `json:"status"`
	DeliveryState string      `json:"delivery_status"`
}

func (p webhookPayload) tracking() string {
	if tc := strings.TrimSpace(p.TrackingCode); tc != "" {
		return tc
	}
	return strings.TrimSpace(p.ConsignmentID.String())
}

func (p webhookPayload) status() string {
	if s := strings.TrimSpace(p.DeliveryState); s != "" {
		return s
	}
	return strings.TrimSpace(p.Status)
}

// Handle runs behind SignatureVerifier.
func (h Webhook) Handle(w http.ResponseWriter, r *http.Request) error {
	provider, ok := ProviderFrom(r.Context())
	if !ok {
		return common.NewAppError(common.KindInternal, "GUARD_MISSING", "webhook signature verifier not installed", nil)
	}
	ctx, span := otel.Tracer("courier.Webhook").Start(r.Context(), "CourierWebhook.Handle")
	defer span.End()
	span.SetAttributes(attribute.String("courier.provider", provider.Code))

	outcome := "error"
	defer func() { obs.Inc(obs.CourierWebhookTotal, provider.Code, outcome) }()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return common.Validation("unable to read payload")
	}
	var payload webhookPayload
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		return common.Validation("invalid webhook payload", common.FieldError{Field: "body", Message: err.Error()})
	}
	tracking := payload.tracking()
	if tracking == "" || payload.status() == "" {
		return common.Validation("tracking_code and status are required")
	}

	eventID := common.Fingerprint(provider.Code, string(body))
	replayKey := "courier:webhook:" + eventID
	if h.Replay != nil {
		fresh, err := h.Replay.SetNX(ctx, replayKey, "1", h.ReplayTTL).Result()
		if err != nil {
			return err
		}
		if !fresh {
			outcome = "duplicate"
			common.JSON(w, http.StatusOK, common.Envelope{Success: true, Message: "duplicate event ignored"})
			return nil
		}
	}

	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	task, err := tasks.NewCourierStatus(tasks.CourierStatus{
		ProviderID:   provider.ID,
		ProviderCode: provider.Code,
		TrackingCode: tracking,
		Status:       payload.status(),
		Raw:          json.RawMessage(body),
		ReceivedAt:   now().UTC(),
	}, eventID)
	if err != nil {
		h.release(ctx, replayKey)
		return err
	}
	info, err := h.Queue.EnqueueContext(ctx, task)
	if err != nil && !errorsIsDuplicate(err) {
		span.RecordError(err)
		// a failed enqueue must stay retryable
		h.release(ctx, replayKey)
		return err
	}
	outcome = "accepted"
	ev := zerolog.Ctx(ctx).Info().Str("provider", provider.Code).Str("tracking_code", tracking)
	if info != nil {
		ev = ev.Str("task_id", info.ID)
	}
	ev.Msg("courier_webhook_enqueued")
	common.JSON(w, http.StatusAccepted, common.Envelope{Success: true, Message: "accepted"})
	return nil
}

func (h Webhook) release(ctx context.Context, key string) {
	if h.Replay == nil {
		return
	}
	if err := h.Replay.Del(context.WithoutCancel(ctx), key).Err(); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("courier_webhook_replay_release_failed")
	}
}

func errorsIsDuplicate(err error) bool {
	return errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask)
}

// Package campaign is the subscription reminder workflow. One run per
// subscription fetches the subscription, decides whether to remind now,
// stop, or walk the offset set, and sleeps durably between reminders.
//
// Every decision that depends on the clock or on the subscription store
// is taken inside a checkpointed step, so a replay after a wake-up
// follows the same path the first activation took.
package campaign

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Pasan-pramu/remind"
	"github.com/Pasan-pramu/remind/backoff"
	"github.com/Pasan-pramu/remind/notify"
	"github.com/Pasan-pramu/remind/policy"
	"github.com/Pasan-pramu/remind/subscription"
	"github.com/Pasan-pramu/remind/workflow"
)

// Name is the registered workflow name.
const Name = "subscription-reminders"

// Input is the trigger payload.
type Input struct {
	SubscriptionID string `json:"subscription_id"`
}

// Emitter receives reminder outcomes. It is satisfied by an adapter
// over ext.Registry in the engine package.
type Emitter interface {
	EmitReminderSent(ctx context.Context, run *workflow.Run, sub *subscription.Subscription, label string)
	EmitReminderSkipped(ctx context.Context, run *workflow.Run, subscriptionID, label, reason string)
}

type nopEmitter struct{}

func (nopEmitter) EmitReminderSent(context.Context, *workflow.Run, *subscription.Subscription, string) {}
func (nopEmitter) EmitReminderSkipped(context.Context, *workflow.Run, string, string, string)          {}

// Option configures a Campaign.
type Option func(*Campaign)

// WithOffsets sets the reminder offsets, largest first.
func WithOffsets(o policy.Offsets) Option {
	return func(c *Campaign) { c.offsets = o.Clone() }
}

// WithImmediateWindow sets how many days before renewal a new campaign
// reminds at once instead of walking the offsets. It defaults to the
// largest offset.
func WithImmediateWindow(days int) Option {
	return func(c *Campaign) { c.window = days }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Campaign) { c.logger = l }
}

// WithEmitter sets the reminder outcome emitter.
func WithEmitter(e Emitter) Option {
	return func(c *Campaign) { c.emitter = e }
}

// Campaign holds the collaborators of the reminder workflow.
type Campaign struct {
	subs    subscription.Store
	sender  notify.Sender
	offsets policy.Offsets
	window  int
	logger  *slog.Logger
	emitter Emitter
}

// New creates a Campaign. Offsets default to {7, 5, 2, 1}.
func New(subs subscription.Store, sender notify.Sender, opts ...Option) (*Campaign, error) {
	if sender == nil {
		return nil, remind.ErrNoSender
	}
	c := &Campaign{
		subs:    subs,
		sender:  sender,
		offsets: policy.DefaultOffsets(),
		window:  -1,
		logger:  slog.Default(),
		emitter: nopEmitter{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.offsets.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", remind.ErrInvalidOffsets, err)
	}
	if c.window < 0 {
		c.window = c.offsets.Max()
	}
	return c, nil
}

// Offsets returns a copy of the configured offsets.
func (c *Campaign) Offsets() policy.Offsets { return c.offsets.Clone() }

// Definition returns the workflow definition to register with a runner.
func (c *Campaign) Definition() *workflow.Definition[Input] {
	return workflow.NewWorkflow(Name, c.Run)
}

// snapshot is the checkpointed result of a subscription lookup.
type snapshot struct {
	Found        bool
	Subscription subscription.Subscription
}

// observation is the checkpointed state seen when an offset comes due.
type observation struct {
	Found        bool
	Subscription subscription.Subscription
	Due          bool
}

// Run is the workflow handler.
func (c *Campaign) Run(wf *workflow.Workflow, in Input) error {
	log := c.logger.With(
		slog.String("run_id", wf.RunID().String()),
		slog.String("subscription_id", in.SubscriptionID),
	)

	first, err := workflow.StepWithResult(wf, "get subscription", func(ctx context.Context) (snapshot, error) {
		return c.fetch(ctx, in.SubscriptionID)
	})
	if err != nil {
		return err
	}
	if !first.Found {
		log.Info("subscription not found, stopping workflow")
		return nil
	}
	sub := first.Subscription
	if !sub.IsActive() {
		log.Info("subscription is not active, stopping workflow", slog.String("status", string(sub.Status)))
		return nil
	}

	decision, err := workflow.StepWithResult(wf, "evaluate renewal", func(context.Context) (policy.Decision, error) {
		return policy.Decide(sub.RenewalDate, wf.Now(), c.window), nil
	})
	if err != nil {
		return err
	}

	switch decision.Action {
	case policy.ActionNotifyNow:
		if err := c.notify(wf, log, &sub, decision.Label()); err != nil {
			return err
		}
		log.Info("sent immediate reminder", slog.String("label", decision.Label()), slog.Int("days_until_renewal", decision.Days))
		return nil
	case policy.ActionTerminate:
		log.Info("renewal date has passed, stopping workflow", slog.Time("renewal_date", sub.RenewalDate))
		return nil
	}

	plan, err := workflow.StepWithResult(wf, "plan reminders", func(context.Context) ([]policy.Reminder, error) {
		return policy.Remaining(sub.RenewalDate, wf.Now(), c.offsets), nil
	})
	if err != nil {
		return err
	}

	for _, r := range plan {
		if r.Date.After(wf.Now()) {
			if err := wf.SleepUntil(policy.SleepLabel(r.Offset), r.Date); err != nil {
				return err
			}
		}

		obs, err := workflow.StepWithResult(wf, fmt.Sprintf("check subscription (%d days before)", r.Offset), func(ctx context.Context) (observation, error) {
			o, err := c.observe(ctx, wf, in.SubscriptionID, r)
			if err == nil && stopReason(o, sub.RenewalDate) == "" && !o.Due {
				c.emitter.EmitReminderSkipped(ctx, wf.Run(), in.SubscriptionID, r.Label, "missed reminder day")
			}
			return o, err
		})
		if err != nil {
			return err
		}
		if reason := stopReason(obs, sub.RenewalDate); reason != "" {
			log.Info("stopping workflow after wake-up", slog.String("reason", reason), slog.String("label", r.Label))
			return nil
		}
		if !obs.Due {
			log.Warn("woke on a different day than the reminder, skipping",
				slog.String("label", r.Label),
				slog.Time("reminder_date", r.Date),
			)
			continue
		}

		log.Info("triggering reminder", slog.String("label", r.Label))
		if err := c.notify(wf, log, &obs.Subscription, r.Label); err != nil {
			return err
		}
	}
	return nil
}

func (c *Campaign) fetch(ctx context.Context, subID string) (snapshot, error) {
	sub, err := c.subs.FindByID(ctx, subID)
	if errors.Is(err, remind.ErrSubscriptionNotFound) {
		return snapshot{}, nil
	}
	if err != nil {
		return snapshot{}, fmt.Errorf("find subscription %s: %w", subID, err)
	}
	return snapshot{Found: true, Subscription: *sub}, nil
}

func (c *Campaign) observe(ctx context.Context, wf *workflow.Workflow, subID string, r policy.Reminder) (observation, error) {
	snap, err := c.fetch(ctx, subID)
	if err != nil {
		return observation{}, err
	}
	return observation{
		Found:        snap.Found,
		Subscription: snap.Subscription,
		Due:          r.Due(wf.Now()),
	}, nil
}

func stopReason(obs observation, renewal time.Time) string {
	switch {
	case !obs.Found:
		return "subscription not found"
	case !obs.Subscription.IsActive():
		return "subscription is " + string(obs.Subscription.Status)
	case !obs.Subscription.RenewalDate.Equal(renewal):
		return "renewal date changed"
	}
	return ""
}

// notify sends one reminder as a run-step named by its label.
func (c *Campaign) notify(wf *workflow.Workflow, log *slog.Logger, sub *subscription.Subscription, label string) error {
	err := wf.Step(label, func(ctx context.Context) error {
		if err := c.sender.Send(ctx, notify.NewMessage(sub, label)); err != nil {
			if isPermanent(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		c.emitter.EmitReminderSent(ctx, wf.Run(), sub, label)
		return nil
	})
	if err != nil {
		log.Error("reminder failed",
			slog.String("label", label),
			slog.String("recipient", sub.User.Email),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("send %q for subscription %s: %w", label, sub.ID, err)
	}
	return nil
}

func isPermanent(err error) bool {
	return errors.Is(err, notify.ErrMissingRecipient) ||
		errors.Is(err, notify.ErrMissingLabel) ||
		errors.Is(err, notify.ErrUnknownLabel)
}

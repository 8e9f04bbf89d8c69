package hooks

import "github.com/rs/zerolog/log"

// Provider is the host-supplied extension point: one method per pipeline
// stage (§6). Every method receives a mutable context and may call
// Handle/Skip/Reject on it (or mutate Request/Response/Ticket directly)
// before returning; NoopProvider is safe to embed by hosts that only
// want to override a handful of stages.
type Provider interface {
	ExtractLogoutRequest(*LogoutContext)
	ValidateLogoutRequest(*LogoutContext)
	HandleLogoutRequest(*LogoutContext)
	ApplyLogoutResponse(*LogoutContext)

	CreateAuthorizationCode(*IssueContext)
	CreateAccessToken(*IssueContext)
	CreateIdentityToken(*IssueContext)
	CreateRefreshToken(*IssueContext)

	ReceiveAuthorizationCode(*ReceiveContext)
	ReceiveAccessToken(*ReceiveContext)
	ReceiveIdentityToken(*ReceiveContext)
	ReceiveRefreshToken(*ReceiveContext)
}

// NoopProvider implements Provider with every method a no-op, leaving
// every stage's outcome at Default. Hosts embed this and override only
// the hooks they care about.
type NoopProvider struct{}

func (NoopProvider) ExtractLogoutRequest(*LogoutContext)  {}
func (NoopProvider) ValidateLogoutRequest(*LogoutContext) {}
func (NoopProvider) HandleLogoutRequest(*LogoutContext)   {}
func (NoopProvider) ApplyLogoutResponse(*LogoutContext)   {}

func (NoopProvider) CreateAuthorizationCode(*IssueContext) {}
func (NoopProvider) CreateAccessToken(*IssueContext)       {}
func (NoopProvider) CreateIdentityToken(*IssueContext)     {}
func (NoopProvider) CreateRefreshToken(*IssueContext)      {}

func (NoopProvider) ReceiveAuthorizationCode(*ReceiveContext) {}
func (NoopProvider) ReceiveAccessToken(*ReceiveContext)       {}
func (NoopProvider) ReceiveIdentityToken(*ReceiveContext)     {}
func (NoopProvider) ReceiveRefreshToken(*ReceiveContext)      {}

// Bus dispatches stage events to a Provider and classifies the result.
// It holds no state of its own beyond the Provider reference, matching
// §5's "HookBus is read-only after construction" concurrency model.
type Bus struct {
	Provider Provider
}

// New builds a Bus around the given Provider.
func New(p Provider) *Bus {
	return &Bus{Provider: p}
}

// DispatchIssue invokes the Create* hook matching ctx.Kind and returns
// its classification (§4.5).
func (b *Bus) DispatchIssue(ctx *IssueContext) Outcome {
	switch ctx.Kind {
	case KindCode:
		b.Provider.CreateAuthorizationCode(ctx)
	case KindAccess:
		b.Provider.CreateAccessToken(ctx)
	case KindID:
		b.Provider.CreateIdentityToken(ctx)
	case KindRefresh:
		b.Provider.CreateRefreshToken(ctx)
	}
	outcome := ctx.Classify()
	if outcome.Kind == Rejected {
		log.Warn().Str("kind", string(ctx.Kind)).Str("error", outcome.Err.Error).Msg("hooks: issue hook rejected")
	}
	return outcome
}

// DispatchReceive invokes the Receive* hook matching ctx.Kind.
func (b *Bus) DispatchReceive(ctx *ReceiveContext) Outcome {
	switch ctx.Kind {
	case KindCode:
		b.Provider.ReceiveAuthorizationCode(ctx)
	case KindAccess:
		b.Provider.ReceiveAccessToken(ctx)
	case KindID:
		b.Provider.ReceiveIdentityToken(ctx)
	case KindRefresh:
		b.Provider.ReceiveRefreshToken(ctx)
	}
	return ctx.Classify()
}

// LogoutStage names one of the four logout pipeline stages dispatched
// through the same Provider (§4.9).
type LogoutStage int

const (
	StageExtract LogoutStage = iota
	StageValidate
	StageHandle
	StageApply
)

// DispatchLogout invokes the hook for the given stage and returns its
// classification. The context's outcome is reset before dispatch so
// each stage's classification reflects only that stage's hook call.
func (b *Bus) DispatchLogout(stage LogoutStage, ctx *LogoutContext) Outcome {
	ctx.base = base{}
	switch stage {
	case StageExtract:
		b.Provider.ExtractLogoutRequest(ctx)
	case StageValidate:
		b.Provider.ValidateLogoutRequest(ctx)
	case StageHandle:
		b.Provider.HandleLogoutRequest(ctx)
	case StageApply:
		b.Provider.ApplyLogoutResponse(ctx)
	}
	return ctx.Outcome()
}

package apply

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/auto-apply/internal/browser"
	"github.com/jonathan/auto-apply/internal/confirm"
	"github.com/jonathan/auto-apply/internal/platform"
	"github.com/jonathan/auto-apply/internal/resume"
	"github.com/jonathan/auto-apply/internal/selector"
	"github.com/jonathan/auto-apply/internal/types"
)

// Field names used in reports and metrics.
const (
	FieldFullName    = "full_name"
	FieldFirstName   = "first_name"
	FieldLastName    = "last_name"
	FieldEmail       = "email"
	FieldPhone       = "phone"
	FieldResume      = resume.FieldName
	FieldCoverLetter = "cover_letter"
	FieldLinkedIn    = "linkedin_url"
	FieldPortfolio   = "portfolio_url"
)

// run is the state of one attempt after its session has been created.
type run struct {
	engine   *Engine
	strategy *platform.Strategy
	data     types.ApplicationData
	jobURL   string
	logger   *zap.Logger

	page   browser.Page
	state  types.State
	fields []types.FieldReport
}

// fieldStep is one "attempt field X" unit of the form-filling phase.
type fieldStep struct {
	name  string
	chain selector.Chain
	value string
}

func (r *run) transition(to types.State) {
	r.logger.Debug("state transition",
		zap.String("from", string(r.state)),
		zap.String("to", string(to)))
	r.state = to
}

func (r *run) fail(err *Error) types.ApplicationResult {
	r.logger.Warn("attempt ended early",
		zap.String("kind", string(err.Kind)),
		zap.String("state", string(r.state)),
		zap.Error(err))
	res := failResult(err)
	r.transition(res.State)
	res.Fields = r.fields
	return res
}

func (r *run) record(res selector.FieldResult) {
	r.fields = append(r.fields, res.Report())
	r.engine.metrics.ObserveField(r.strategy.ID, res.Field, string(res.Outcome))
	if res.Outcome == selector.OutcomeNotFound || res.Outcome == selector.OutcomeError {
		kind := KindFieldNotFound
		if res.Field == FieldResume {
			kind = KindResumeUploadFailed
			var rerr *resume.Error
			if errors.As(res.Err, &rerr) && rerr.Stage != resume.StageUpload {
				kind = KindResumeFetchFailed
			}
		}
		r.logger.Info("field skipped",
			zap.String("kind", string(kind)),
			zap.String("field", res.Field),
			zap.String("outcome", string(res.Outcome)),
			zap.Error(res.Err))
	}
}

func (r *run) resolver() *selector.Resolver {
	res := selector.NewResolver(r.engine.opts.ProbeTimeout, r.logger)
	res.ActionTimeout = r.engine.opts.ActionTimeout
	return res
}

// execute runs the navigation, form and submit phases on an acquired page.
func (r *run) execute(ctx context.Context) types.ApplicationResult {
	s := r.strategy
	resolver := r.resolver()
	clicker := selector.NewClicker(resolver)

	if err := r.navigate(ctx); err != nil {
		return r.fail(err)
	}
	r.transition(types.StateNavigated)

	if !s.ApplyButton.Empty() {
		if _, err := clicker.Click(ctx, r.page, "apply_button", s.ApplyButton); err != nil {
			if s.ApplyRequired {
				return r.fail(newError(KindInitiatingControlNotFound, err, "Could not find the apply button on %s", s.DisplayName()))
			}
			r.logger.Debug("optional apply button not clicked", zap.Error(err))
		} else if err := r.checkAuthWall(ctx); err != nil {
			return r.fail(err)
		}
	}

	filler := selector.NewFiller(resolver, r.logger)
	for _, step := range r.personalSteps() {
		r.record(filler.Fill(ctx, r.page, step.name, step.chain, step.value))
	}

	handler := resume.NewHandler(r.engine.fetcher, resolver, r.engine.opts.ScratchDir, r.logger)
	r.record(handler.Attach(ctx, r.page, r.data.ResumeURL, s.Fields.Resume))

	for _, step := range r.optionalSteps() {
		r.record(filler.Fill(ctx, r.page, step.name, step.chain, step.value))
	}
	r.transition(types.StateFormProcessed)

	if _, err := clicker.Click(ctx, r.page, "submit", s.Submit); err != nil {
		return r.fail(newError(KindSubmitControlNotFound, err, "No enabled submit control found on %s", s.DisplayName()))
	}
	r.transition(types.StateSubmitted)

	// Past the submit click the attempt is reported as automated.
	confirmer := confirm.New(r.engine.opts.ConfirmTimeout, r.engine.opts.ConfirmPoll, r.logger)
	conf := confirmer.Await(ctx, r.page, s.Confirmation)
	if conf.Confirmed {
		r.transition(types.StateConfirmed)
	} else {
		r.logger.Info("submitted without confirmation", zap.String("kind", string(KindConfirmationTimeout)))
		r.transition(types.StateSubmittedUnconfirmed)
	}

	return types.ApplicationResult{
		Success:        true,
		Method:         types.MethodAutomated,
		ConfirmationID: conf.ID,
		State:          r.state,
		Fields:         r.fields,
	}
}

func (r *run) personalSteps() []fieldStep {
	f := r.strategy.Fields
	var steps []fieldStep
	if r.strategy.SplitName {
		first, last := r.data.SplitName()
		steps = append(steps,
			fieldStep{FieldFirstName, f.FirstName, first},
			fieldStep{FieldLastName, f.LastName, last},
		)
	} else {
		steps = append(steps, fieldStep{FieldFullName, f.FullName, r.data.FullName})
	}
	return append(steps,
		fieldStep{FieldEmail, f.Email, r.data.Email},
		fieldStep{FieldPhone, f.Phone, r.data.Phone},
	)
}

func (r *run) optionalSteps() []fieldStep {
	f := r.strategy.Fields
	return []fieldStep{
		{FieldCoverLetter, f.CoverLetter, r.data.CoverLetter},
		{FieldLinkedIn, f.LinkedIn, r.data.LinkedInURL},
		{FieldPortfolio, f.Portfolio, r.data.PortfolioURL},
	}
}

// navigate loads the job page and waits for the platform's load marker.
func (r *run) navigate(ctx context.Context) *Error {
	navCtx, cancel := context.WithTimeout(ctx, r.engine.opts.NavigationTimeout)
	defer cancel()

	if err := r.page.Navigate(navCtx, r.jobURL); err != nil {
		return newError(KindNavigationTimeout, err, "Navigation to job page failed")
	}
	if err := r.waitForMarker(navCtx); err != nil {
		var wall *Error
		if errors.As(err, &wall) {
			return wall
		}
		// Login pages never show the load marker; look once more before giving up.
		checkCtx, cancelCheck := context.WithTimeout(ctx, r.engine.opts.ProbeTimeout)
		defer cancelCheck()
		if authErr := r.checkAuthWall(checkCtx); authErr != nil {
			return authErr
		}
		return newError(KindNavigationTimeout, err, "Timed out waiting for %s page to load", r.strategy.DisplayName())
	}
	return nil
}

// waitForMarker polls the load-marker chain until any candidate is visible.
// An auth wall seen on any poll is returned as an *Error.
func (r *run) waitForMarker(ctx context.Context) error {
	ticker := time.NewTicker(r.engine.opts.MarkerPoll)
	defer ticker.Stop()

	for {
		if wall := r.checkAuthWall(ctx); wall != nil {
			return wall
		}
		for _, loc := range r.strategy.LoadMarker {
			state, err := r.page.Inspect(ctx, loc)
			if err == nil && state.Found && state.Visible {
				r.logger.Debug("load marker visible", zap.String("locator", loc.String()))
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *run) checkAuthWall(ctx context.Context) *Error {
	current, err := r.page.URL(ctx)
	if err != nil {
		current = r.jobURL
	}
	html, err := r.page.HTML(ctx)
	if err != nil {
		r.logger.Debug("could not read page html for auth check", zap.Error(err))
	}

	walled, reason, err := r.strategy.DetectAuthWall(current, html)
	if err != nil {
		r.logger.Debug("auth wall check failed", zap.Error(err))
		return nil
	}
	if walled {
		r.logger.Info("authentication wall detected", zap.String("reason", reason))
		return newError(KindAuthenticationRequired, nil, "Authentication required to apply on %s", r.strategy.DisplayName())
	}
	return nil
}

package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"recruitment-portal/internal/app"
	"recruitment-portal/internal/domain"
)

func TestTechnicalThenDesignLockout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(app.AttemptConfig{Duration: time.Minute})
	f.seedUser("u1", domain.Technical, domain.Design)
	f.seedQuestionnaire(domain.Technical, 3)
	f.seedQuestionnaire(domain.Design, 2)

	view, err := f.attempts.Start(ctx, "u1", domain.Technical)
	if err != nil {
		t.Fatalf("start technical: %v", err)
	}
	if len(view.Questions) != 3 || view.Status.RemainingSeconds != 60 {
		t.Fatalf("unexpected view %+v", view.Status)
	}
	for i, answer := range []string{"Go", "A compiler", "Some"} {
		if _, err := f.attempts.Answer(ctx, "u1", domain.Technical, i, answer); err != nil {
			t.Fatalf("answer %d: %v", i, err)
		}
	}
	resp, err := f.attempts.Submit(ctx, "u1", domain.Technical)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if resp.TimeExpired || len(resp.Responses) != 3 || resp.Responses["q2"] != "A compiler" {
		t.Fatalf("unexpected response %+v", resp)
	}

	_, err = f.attempts.Start(ctx, "u1", domain.Technical)
	var denied *app.DeniedError
	if !errors.As(err, &denied) || denied.Decision.Reason != domain.DenyAlreadyAttempted {
		t.Fatalf("expected already attempted denial, got %v", err)
	}
	if denied.Decision.Redirect != domain.RedirectDashboard {
		t.Fatalf("expected dashboard redirect, got %q", denied.Decision.Redirect)
	}
	if domain.KindOf(err) != domain.KindAccessDenied {
		t.Fatalf("expected access denied kind, got %v", domain.KindOf(err))
	}

	if _, err := f.attempts.Start(ctx, "u1", domain.Design); err != nil {
		t.Fatalf("design should still be open: %v", err)
	}
}

func TestTimerExpiryForcesPartialSubmission(t *testing.T) {
	ctx := context.Background()
	f := newFixture(app.AttemptConfig{Duration: time.Second, TickInterval: 20 * time.Millisecond})
	f.seedUser("u1", domain.Design)
	f.seedQuestionnaire(domain.Design, 3)

	if _, err := f.attempts.Start(ctx, "u1", domain.Design); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := f.attempts.Answer(ctx, "u1", domain.Design, 0, "Figma"); err != nil {
		t.Fatalf("answer: %v", err)
	}

	if !waitFor(3*time.Second, func() bool { return len(f.responses()) == 1 }) {
		t.Fatalf("expected forced submission within the time limit")
	}
	resp := f.responses()[0]
	if !resp.TimeExpired {
		t.Fatalf("expected timeExpired=true")
	}
	if len(resp.Responses) != 1 || resp.Responses["q1"] != "Figma" {
		t.Fatalf("expected partial answers, got %+v", resp.Responses)
	}
	user, _ := f.store.GetUser(ctx, "u1")
	if !user.HasAttempted(domain.Design) {
		t.Fatalf("expected attempted flag after forced submission")
	}
	if _, err := f.attempts.Status(ctx, "u1", domain.Design); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected attempt removed after submission, got %v", err)
	}
	if f.store.submissionCalls() != 1 {
		t.Fatalf("expected a single write, got %d", f.store.submissionCalls())
	}
}

func TestIncompleteManualSubmitRejectedWithoutWrite(t *testing.T) {
	ctx := context.Background()
	f := newFixture(app.AttemptConfig{Duration: time.Minute})
	f.seedUser("u1", domain.Editorial)
	f.seedQuestionnaire(domain.Editorial, 2)

	if _, err := f.attempts.Start(ctx, "u1", domain.Editorial); err != nil {
		t.Fatalf("start: %v", err)
	}
	_, _ = f.attempts.Answer(ctx, "u1", domain.Editorial, 0, "Essays")

	_, err := f.attempts.Submit(ctx, "u1", domain.Editorial)
	if !errors.Is(err, domain.ErrIncompleteAnswers) {
		t.Fatalf("expected incomplete answers error, got %v", err)
	}
	if f.store.submissionCalls() != 0 || len(f.responses()) != 0 {
		t.Fatalf("expected no write for incomplete submission")
	}
	user, _ := f.store.GetUser(ctx, "u1")
	if user.HasAttempted(domain.Editorial) {
		t.Fatalf("attempted flag must stay false")
	}

	status, err := f.attempts.Status(ctx, "u1", domain.Editorial)
	if err != nil || status.Phase != app.PhaseInProgress {
		t.Fatalf("attempt should remain open, got %+v %v", status, err)
	}
}

func TestWriteFailureAllowsRetry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(app.AttemptConfig{Duration: time.Minute})
	f.seedUser("u1", domain.Management)
	f.seedQuestionnaire(domain.Management, 1)
	f.store.failSubmission = 1

	if _, err := f.attempts.Start(ctx, "u1", domain.Management); err != nil {
		t.Fatalf("start: %v", err)
	}
	_, _ = f.attempts.Answer(ctx, "u1", domain.Management, 0, "Led a club")

	_, err := f.attempts.Submit(ctx, "u1", domain.Management)
	if domain.KindOf(err) != domain.KindWriteFailure {
		t.Fatalf("expected write failure, got %v", err)
	}
	status, _ := f.attempts.Status(ctx, "u1", domain.Management)
	if status.Phase != app.PhaseInProgress || status.Error == "" {
		t.Fatalf("expected retryable attempt with error, got %+v", status)
	}

	if _, err := f.attempts.Submit(ctx, "u1", domain.Management); err != nil {
		t.Fatalf("retry submit: %v", err)
	}
	if len(f.responses()) != 1 {
		t.Fatalf("expected one stored response")
	}
}

func TestStartResumesLiveAttempt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(app.AttemptConfig{Duration: time.Minute})
	f.seedUser("u1", domain.Technical)
	f.seedQuestionnaire(domain.Technical, 2)

	if _, err := f.attempts.Start(ctx, "u1", domain.Technical); err != nil {
		t.Fatalf("start: %v", err)
	}
	_, _ = f.attempts.Answer(ctx, "u1", domain.Technical, 1, "kept")

	view, err := f.attempts.Start(ctx, "u1", domain.Technical)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if view.Status.Answers["q2"] != "kept" {
		t.Fatalf("expected resumed attempt to keep answers, got %+v", view.Status.Answers)
	}
	if len(f.registry.Keys()) != 1 {
		t.Fatalf("expected a single live attempt")
	}
}

func TestAnswerAndNavigateBounds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(app.AttemptConfig{Duration: time.Minute})
	f.seedUser("u1", domain.Technical)
	f.seedQuestionnaire(domain.Technical, 3)

	if _, err := f.attempts.Start(ctx, "u1", domain.Technical); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := f.attempts.Answer(ctx, "u1", domain.Technical, 3, "x"); !errors.Is(err, domain.ErrQuestionIndex) {
		t.Fatalf("expected index error, got %v", err)
	}

	status, _ := f.attempts.Navigate(ctx, "u1", domain.Technical, domain.Move{Kind: domain.MovePrev})
	if status.Current != 0 {
		t.Fatalf("prev at start should stay at 0, got %d", status.Current)
	}
	status, _ = f.attempts.Navigate(ctx, "u1", domain.Technical, domain.Move{Kind: domain.MoveJump, Target: 9})
	if status.Current != 2 {
		t.Fatalf("jump should clamp to last, got %d", status.Current)
	}
	status, _ = f.attempts.Navigate(ctx, "u1", domain.Technical, domain.Move{Kind: domain.MoveNext})
	if status.Current != 2 {
		t.Fatalf("next at end should stay, got %d", status.Current)
	}

	if _, err := f.attempts.Answer(ctx, "other", domain.Technical, 0, "x"); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected attempt not found for other user, got %v", err)
	}
}

func TestSubscribeReceivesUpdates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(app.AttemptConfig{Duration: time.Minute})
	f.seedUser("u1", domain.Design)
	f.seedQuestionnaire(domain.Design, 1)

	if _, err := f.attempts.Start(ctx, "u1", domain.Design); err != nil {
		t.Fatalf("start: %v", err)
	}
	ch, cancel, err := f.attempts.Subscribe(ctx, "u1", domain.Design)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	<-ch // initial snapshot

	if _, err := f.attempts.Answer(ctx, "u1", domain.Design, 0, "sketching"); err != nil {
		t.Fatalf("answer: %v", err)
	}
	select {
	case update := <-ch:
		if update.Answers["q1"] != "sketching" {
			t.Fatalf("expected answer in update, got %+v", update.Answers)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected update after answer")
	}

	if _, err := f.attempts.Submit(ctx, "u1", domain.Design); err != nil {
		t.Fatalf("submit: %v", err)
	}
	var last app.AttemptStatus
	for update := range ch {
		last = update
	}
	if last.Phase != app.PhaseSubmitted || last.Result == nil {
		t.Fatalf("expected final submitted status, got %+v", last)
	}
}

func TestStartDeniedWithoutSelection(t *testing.T) {
	ctx := context.Background()
	f := newFixture(app.AttemptConfig{Duration: time.Minute})
	f.seedUser("u1", domain.Technical)
	f.seedQuestionnaire(domain.Design, 1)

	_, err := f.attempts.Start(ctx, "u1", domain.Design)
	var denied *app.DeniedError
	if !errors.As(err, &denied) || denied.Decision.Reason != domain.DenyDomainNotSelected {
		t.Fatalf("expected domain not selected, got %v", err)
	}
	if len(f.registry.Keys()) != 0 {
		t.Fatalf("denied start must not register an attempt")
	}
}

func TestAbandonStopsEveryAttempt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(app.AttemptConfig{Duration: 200 * time.Millisecond})
	f.seedUser("u1", domain.Technical, domain.Design)
	f.seedQuestionnaire(domain.Technical, 1)
	f.seedQuestionnaire(domain.Design, 1)

	for _, d := range []domain.Domain{domain.Technical, domain.Design} {
		if _, err := f.attempts.Start(ctx, "u1", d); err != nil {
			t.Fatalf("start %s: %v", d, err)
		}
	}
	f.attempts.Abandon()

	if len(f.registry.Keys()) != 0 {
		t.Fatalf("expected no live attempts after abandon")
	}
	if _, err := f.attempts.Status(ctx, "u1", domain.Technical); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected attempt gone, got %v", err)
	}
	time.Sleep(400 * time.Millisecond)
	if f.store.submissionCalls() != 0 {
		t.Fatalf("abandoned attempts must not submit on expiry")
	}
}

func TestExpiryDuringManualSubmitIsDeduplicated(t *testing.T) {
	ctx := context.Background()
	f := newFixture(app.AttemptConfig{Duration: 300 * time.Millisecond, TickInterval: 20 * time.Millisecond})
	f.seedUser("u1", domain.Technical)
	f.seedQuestionnaire(domain.Technical, 1)

	if _, err := f.attempts.Start(ctx, "u1", domain.Technical); err != nil {
		t.Fatalf("start: %v", err)
	}
	_, _ = f.attempts.Answer(ctx, "u1", domain.Technical, 0, "Go")

	entered, release := f.store.holdNextSubmission()
	defer release()
	type result struct {
		resp domain.QuizResponse
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := f.attempts.Submit(ctx, "u1", domain.Technical)
		done <- result{resp, err}
	}()
	<-entered

	// The timer runs out while the manual write is parked.
	if !waitFor(2*time.Second, func() bool {
		status, err := f.attempts.Status(ctx, "u1", domain.Technical)
		return err == nil && status.Expired
	}) {
		t.Fatalf("expected the timer to expire during the manual submit")
	}
	time.Sleep(100 * time.Millisecond)
	release()

	res := <-done
	if res.err != nil {
		t.Fatalf("manual submit: %v", res.err)
	}
	if res.resp.TimeExpired {
		t.Fatalf("manual submission must keep timeExpired=false")
	}
	time.Sleep(100 * time.Millisecond)
	if calls := f.store.submissionCalls(); calls != 1 {
		t.Fatalf("expected a single store write, got %d", calls)
	}
	if n := len(f.responses()); n != 1 {
		t.Fatalf("expected one response, got %d", n)
	}
}

func TestExpiryDuringFailedManualSubmitIsRetried(t *testing.T) {
	ctx := context.Background()
	f := newFixture(app.AttemptConfig{Duration: 300 * time.Millisecond, TickInterval: 20 * time.Millisecond})
	f.seedUser("u1", domain.Design)
	f.seedQuestionnaire(domain.Design, 2)
	f.store.failSubmission = 1

	if _, err := f.attempts.Start(ctx, "u1", domain.Design); err != nil {
		t.Fatalf("start: %v", err)
	}
	_, _ = f.attempts.Answer(ctx, "u1", domain.Design, 0, "Figma")
	_, _ = f.attempts.Answer(ctx, "u1", domain.Design, 1, "Posters")

	entered, release := f.store.holdNextSubmission()
	defer release()
	done := make(chan error, 1)
	go func() {
		_, err := f.attempts.Submit(ctx, "u1", domain.Design)
		done <- err
	}()
	<-entered

	if !waitFor(2*time.Second, func() bool {
		status, err := f.attempts.Status(ctx, "u1", domain.Design)
		return err == nil && status.Expired
	}) {
		t.Fatalf("expected the timer to expire during the manual submit")
	}
	time.Sleep(100 * time.Millisecond)
	release()

	if err := <-done; domain.KindOf(err) != domain.KindWriteFailure {
		t.Fatalf("expected write failure from the manual submit, got %v", err)
	}
	if !waitFor(2*time.Second, func() bool { return len(f.responses()) == 1 }) {
		t.Fatalf("expected the pending expiry to record the attempt")
	}
	if calls := f.store.submissionCalls(); calls != 2 {
		t.Fatalf("expected manual write plus one forced retry, got %d", calls)
	}
	if resp := f.responses()[0]; !resp.TimeExpired || resp.Responses["q2"] != "Posters" {
		t.Fatalf("unexpected forced response %+v", resp)
	}
	if _, err := f.attempts.Status(ctx, "u1", domain.Design); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected attempt removed after the forced retry, got %v", err)
	}
}

func TestSubscribeRacingSubmitNeverPanics(t *testing.T) {
	ctx := context.Background()
	f := newFixture(app.AttemptConfig{Duration: time.Minute})
	f.seedQuestionnaire(domain.Technical, 1)

	for i := 0; i < 50; i++ {
		uid := fmt.Sprintf("u%d", i)
		f.seedUser(uid, domain.Technical)
		if _, err := f.attempts.Start(ctx, uid, domain.Technical); err != nil {
			t.Fatalf("start %s: %v", uid, err)
		}
		_, _ = f.attempts.Answer(ctx, uid, domain.Technical, 0, "Go")

		var wg sync.WaitGroup
		for j := 0; j < 8; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ch, cancel, err := f.attempts.Subscribe(ctx, uid, domain.Technical)
				if err != nil {
					return
				}
				defer cancel()
				if _, ok := <-ch; !ok {
					t.Errorf("expected an initial snapshot before close")
				}
			}()
		}
		if _, err := f.attempts.Submit(ctx, uid, domain.Technical); err != nil {
			t.Fatalf("submit %s: %v", uid, err)
		}
		wg.Wait()
	}
}

func TestDeselectedDomainAttemptIsDropped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(app.AttemptConfig{Duration: time.Minute})
	f.seedUser("u1", domain.Technical, domain.Design)
	f.seedQuestionnaire(domain.Technical, 1)

	if _, err := f.attempts.Start(ctx, "u1", domain.Technical); err != nil {
		t.Fatalf("start: %v", err)
	}
	_, _ = f.attempts.Answer(ctx, "u1", domain.Technical, 0, "Go")
	ch, cancel, err := f.attempts.Subscribe(ctx, "u1", domain.Technical)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	f.seedUser("u1", domain.Design)

	_, err = f.attempts.Submit(ctx, "u1", domain.Technical)
	var denied *app.DeniedError
	if !errors.As(err, &denied) || denied.Decision.Reason != domain.DenyDomainNotSelected {
		t.Fatalf("expected domain not selected, got %v", err)
	}
	if len(f.responses()) != 0 || f.store.submissionCalls() != 0 {
		t.Fatalf("deselected domain must not be recorded")
	}
	if _, err := f.attempts.Status(ctx, "u1", domain.Technical); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected attempt dropped, got %v", err)
	}
	var last app.AttemptStatus
	for status := range ch {
		last = status
	}
	if last.Phase != app.PhaseDiscarded {
		t.Fatalf("expected subscribers to see the discarded phase, got %+v", last)
	}
}

func TestResumeRechecksSelection(t *testing.T) {
	ctx := context.Background()
	f := newFixture(app.AttemptConfig{Duration: time.Minute})
	f.seedUser("u1", domain.Technical, domain.Design)
	f.seedQuestionnaire(domain.Technical, 1)

	if _, err := f.attempts.Start(ctx, "u1", domain.Technical); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.seedUser("u1", domain.Design)

	if _, err := f.attempts.Start(ctx, "u1", domain.Technical); domain.KindOf(err) != domain.KindAccessDenied {
		t.Fatalf("expected access denied on resume, got %v", err)
	}
	if len(f.registry.Keys()) != 0 {
		t.Fatalf("expected the live attempt to be dropped")
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"etf_agent/internal/models"
	"etf_agent/pkg/logger"
)

type planStep struct {
	action    Action
	submitted bool
}

// Plan: очередь действий под одно решение.
type Plan struct {
	Tag   models.DecisionTag
	steps []*planStep
	done  map[string]models.Side
}

// Actions: оставшиеся шаги плана.
func (p *Plan) Actions() []Action {
	out := make([]Action, 0, len(p.steps))
	for _, s := range p.steps {
		out = append(out, s.action)
	}
	return out
}

func (p *Plan) String() string {
	names := make([]string, 0, len(p.steps))
	for _, s := range p.steps {
		names = append(names, s.action.String())
	}
	return fmt.Sprintf("%s[%s]", p.Tag, strings.Join(names, ", "))
}

// OrderObserver получает исход отправки каждой заявки: submitted или rejected.
type OrderObserver interface {
	Order(side models.Side, result string)
}

// Scheduler строит и прогоняет план; одновременно активен не больше одного.
type Scheduler struct {
	candidates []models.Candidate
	neutral    models.DecisionTag

	account   *Account
	submitter OrderSubmitter
	refresher DepositRefresher
	observer  OrderObserver

	plan *Plan
}

func NewScheduler(
	candidates []models.Candidate,
	neutral models.DecisionTag,
	account *Account,
	submitter OrderSubmitter,
	refresher DepositRefresher,
) *Scheduler {
	return &Scheduler{
		candidates: append([]models.Candidate(nil), candidates...),
		neutral:    neutral,
		account:    account,
		submitter:  submitter,
		refresher:  refresher,
	}
}

// Observe подключает учёт заявок (метрики).
func (s *Scheduler) Observe(o OrderObserver) { s.observer = o }

func (s *Scheduler) report(a Action, result string) {
	sided, ok := a.(interface{ Side() models.Side })
	if !ok || s.observer == nil {
		return
	}
	s.observer.Order(sided.Side(), result)
}

func (s *Scheduler) Active() bool { return s.plan != nil }

// Plan: текущий план или nil.
func (s *Scheduler) Plan() *Plan { return s.plan }

// Pick выбирает метку с максимальным score; при равенстве раньше идёт кандидат из конфига,
// нейтральная метка последней. Неизвестная метка в ответе: ошибка всего ответа.
func (s *Scheduler) Pick(scores map[models.DecisionTag]float64) (models.DecisionTag, error) {
	if len(scores) == 0 {
		return "", fmt.Errorf("empty scores: %w", ErrUnknownTag)
	}
	order := make([]models.DecisionTag, 0, len(s.candidates)+1)
	for _, c := range s.candidates {
		order = append(order, c.Tag)
	}
	order = append(order, s.neutral)

	known := make(map[models.DecisionTag]bool, len(order))
	for _, t := range order {
		known[t] = true
	}
	for t := range scores {
		if !known[t] {
			return "", fmt.Errorf("tag %q: %w", t, ErrUnknownTag)
		}
	}

	var best models.DecisionTag
	found := false
	for _, t := range order {
		v, ok := scores[t]
		if !ok {
			continue
		}
		if !found || v > scores[best] {
			best, found = t, true
		}
	}
	return best, nil
}

// BuildPlan сравнивает целевую метку с позициями счёта.
func (s *Scheduler) BuildPlan(tag models.DecisionTag) (*Plan, error) {
	p := &Plan{Tag: tag, done: make(map[string]models.Side)}
	add := func(a Action) { p.steps = append(p.steps, &planStep{action: a}) }

	if tag == s.neutral {
		add(NoOp{})
		return p, nil
	}

	target, ok := s.candidate(tag)
	if !ok {
		return nil, fmt.Errorf("build plan %q: %w", tag, ErrUnknownTag)
	}
	if s.account.Holds(target.Code) {
		add(NoOp{})
		return p, nil
	}

	sold := false
	for _, c := range s.candidates {
		if c.Code == target.Code || !s.account.Holds(c.Code) {
			continue
		}
		add(NewSell(c.Code, s.account, s.submitter))
		sold = true
	}
	if sold {
		add(RefreshDeposit{refresher: s.refresher})
	}
	add(NewBuy(target.Code, s.account, s.submitter))
	return p, nil
}

// Decide строит план, если активного нет.
func (s *Scheduler) Decide(tag models.DecisionTag) error {
	if s.plan != nil {
		logger.Info("[ORDERS] decision %s ignored: plan %s still active", tag, s.plan)
		return ErrPlanActive
	}
	p, err := s.BuildPlan(tag)
	if err != nil {
		return err
	}
	s.plan = p
	logger.Info("[ORDERS] new plan %s", p)
	return nil
}

// Step отправляет голову плана (ровно один раз) и снимает её, когда можно.
// Возвращает true, если план опустел на этом шаге.
func (s *Scheduler) Step(ctx context.Context) bool {
	p := s.plan
	if p == nil {
		return false
	}
	if len(p.steps) == 0 {
		s.plan = nil
		return true
	}

	head := p.steps[0]
	if !head.submitted {
		if err := head.action.Before(); err != nil {
			logger.Warn("[ORDERS] %s not ready: %v", head.action, err)
			return false
		}
		err := head.action.Submit(ctx)
		switch {
		case err == nil:
			head.submitted = true
			s.report(head.action, "submitted")
		case errors.Is(err, ErrRetryLater):
			logger.Warn("[ORDERS] %s: %v", head.action, err)
			return false
		default:
			// без ретрая: шаг висит, пока оператор не вмешается
			head.submitted = true
			s.report(head.action, "rejected")
			logger.Error("[ORDERS] %s failed, plan %s stalled: %v", head.action, p, err)
		}
	}

	if !head.action.CanTerminate(p.done) {
		return false
	}
	p.steps = p.steps[1:]
	logger.Info("[ORDERS] %s done, left %d", head.action, len(p.steps))

	if len(p.steps) == 0 {
		logger.Info("[ORDERS] plan %s completed", p.Tag)
		s.plan = nil
		return true
	}
	return false
}

// OnExecution отмечает полностью исполненную заявку для активного плана.
func (s *Scheduler) OnExecution(r models.ExecutionReport) {
	if s.plan == nil || r.Remaining > 0 || r.Code == "" {
		return
	}
	s.plan.done[r.Code] = r.Side
}

func (s *Scheduler) candidate(tag models.DecisionTag) (models.Candidate, bool) {
	for _, c := range s.candidates {
		if c.Tag == tag {
			return c, true
		}
	}
	return models.Candidate{}, false
}

package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"go.uber.org/zap"

	"appliance-fieldops/authcore/internal/policy/repository"
	"appliance-fieldops/authcore/internal/role"
)

// Default Rego policy matching the configured login rules. Operator
// policies loaded from the database layer over this package.
const defaultRegoPolicy = `package fieldops.login

default single_device_enforced = false
default conflict_mode = "takeover"
default odd_hour = false

single_device_enforced if {
	input.user.role == input.config.single_device_roles[_]
}

conflict_mode = input.config.conflict_mode if {
	input.config.conflict_mode != ""
}

odd_hour if {
	input.login.hour < input.config.hours_start
}

odd_hour if {
	input.login.hour >= input.config.hours_end
}
`

// Settings carries the configured login rules fed to the policy as
// input.config, and doubles as the fallback when evaluation fails.
// HoursStart and HoursEnd are hours of day in Location; nil Location
// means UTC.
type Settings struct {
	SingleDeviceRoles map[role.Role]bool
	ConflictMode      string
	HoursStart        int
	HoursEnd          int
	Location          *time.Location
}

// OPAEvaluator evaluates login policy using OPA Rego.
type OPAEvaluator struct {
	policyRepo repository.Repository
	settings   Settings
	log        *zap.Logger
}

func NewOPAEvaluator(policyRepo repository.Repository, settings Settings, logger *zap.Logger) *OPAEvaluator {
	return &OPAEvaluator{policyRepo: policyRepo, settings: settings, log: logger}
}

// HealthCheck verifies the in-process Rego engine can compile and
// evaluate the built-in policy. Does not touch the database.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	compiler, err := ast.CompileModules(map[string]string{"policy_0.rego": defaultRegoPolicy})
	if err != nil {
		return fmt.Errorf("compile default policy: %w", err)
	}
	q := rego.New(
		rego.Query("data.fieldops.login.single_device_enforced"),
		rego.Compiler(compiler),
		rego.Input(e.buildInput("", role.Technician, time.Now().UTC())),
	)
	rs, err := q.Eval(ctx)
	if err != nil {
		return fmt.Errorf("eval default policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return fmt.Errorf("policy query returned no result")
	}
	return nil
}

// EvaluateLogin resolves the device and hours policy for one login
// attempt. Evaluation failures fall back to the configured settings so
// a broken operator policy cannot disable enforcement.
func (e *OPAEvaluator) EvaluateLogin(ctx context.Context, userID string, r role.Role, loginAt time.Time) (LoginResult, error) {
	input := e.buildInput(userID, r, loginAt)

	var policies []string
	enabled, err := e.policyRepo.ListEnabled(ctx)
	if err != nil {
		e.log.Warn("loading login policies failed, using default", zap.Error(err))
	} else {
		for _, p := range enabled {
			if p.Enabled && p.Rules != "" {
				policies = append(policies, p.Rules)
			}
		}
	}
	if len(policies) == 0 {
		policies = []string{defaultRegoPolicy}
	}

	result, err := e.evaluatePolicies(ctx, policies, input)
	if err != nil {
		e.log.Warn("login policy evaluation failed, using configured defaults", zap.Error(err))
		return e.defaultResult(r, loginAt), nil
	}
	return result, nil
}

func (e *OPAEvaluator) buildInput(userID string, r role.Role, loginAt time.Time) map[string]interface{} {
	roles := make([]string, 0, len(e.settings.SingleDeviceRoles))
	for rl, on := range e.settings.SingleDeviceRoles {
		if on {
			roles = append(roles, string(rl))
		}
	}
	return map[string]interface{}{
		"user": map[string]interface{}{
			"id":   userID,
			"role": string(r),
		},
		"login": map[string]interface{}{
			"hour":    e.localHour(loginAt),
			"weekday": loginAt.In(e.location()).Weekday().String(),
		},
		"config": map[string]interface{}{
			"single_device_roles": roles,
			"conflict_mode":       e.settings.ConflictMode,
			"hours_start":         e.settings.HoursStart,
			"hours_end":           e.settings.HoursEnd,
		},
	}
}

func (e *OPAEvaluator) evaluatePolicies(ctx context.Context, policies []string, input map[string]interface{}) (LoginResult, error) {
	modules := make(map[string]string)
	for i, policy := range policies {
		modules[fmt.Sprintf("policy_%d.rego", i)] = policy
	}
	compiler, err := ast.CompileModules(modules)
	if err != nil {
		return LoginResult{}, fmt.Errorf("compile policies: %w", err)
	}

	out := LoginResult{ConflictMode: e.settings.ConflictMode}

	if v, ok := e.queryBool(ctx, compiler, input, "data.fieldops.login.single_device_enforced"); ok {
		out.SingleDeviceEnforced = v
	}
	if v, ok := e.queryString(ctx, compiler, input, "data.fieldops.login.conflict_mode"); ok && v != "" {
		out.ConflictMode = v
	}
	if v, ok := e.queryBool(ctx, compiler, input, "data.fieldops.login.odd_hour"); ok {
		out.OddHour = v
	}
	return out, nil
}

func (e *OPAEvaluator) queryBool(ctx context.Context, compiler *ast.Compiler, input map[string]interface{}, query string) (bool, bool) {
	rs, err := rego.New(
		rego.Query(query),
		rego.Compiler(compiler),
		rego.Input(input),
	).Eval(ctx)
	if err != nil || len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, false
	}
	v, ok := rs[0].Expressions[0].Value.(bool)
	return v, ok
}

func (e *OPAEvaluator) queryString(ctx context.Context, compiler *ast.Compiler, input map[string]interface{}, query string) (string, bool) {
	rs, err := rego.New(
		rego.Query(query),
		rego.Compiler(compiler),
		rego.Input(input),
	).Eval(ctx)
	if err != nil || len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return "", false
	}
	v, ok := rs[0].Expressions[0].Value.(string)
	return v, ok
}

func (e *OPAEvaluator) location() *time.Location {
	if e.settings.Location != nil {
		return e.settings.Location
	}
	return time.UTC
}

// localHour converts the login instant into the deployment's hours
// timezone before taking the hour of day.
func (e *OPAEvaluator) localHour(loginAt time.Time) int {
	return loginAt.In(e.location()).Hour()
}

func (e *OPAEvaluator) defaultResult(r role.Role, loginAt time.Time) LoginResult {
	hour := e.localHour(loginAt)
	return LoginResult{
		SingleDeviceEnforced: e.settings.SingleDeviceRoles[r],
		ConflictMode:         e.settings.ConflictMode,
		OddHour:              hour < e.settings.HoursStart || hour >= e.settings.HoursEnd,
	}
}

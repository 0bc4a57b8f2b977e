package docs

var topics = []Topic{
	{
		Name:    "quickstart",
		Title:   "Quick Start",
		Summary: "Getting started with orc",
		Content: topicQuickstart,
	},
	{
		Name:    "template",
		Title:   "Template Reference",
		Summary: "Workflow template schema, fields, and defaults",
		Content: topicTemplate,
	},
	{
		Name:    "providers",
		Title:   "Provider Kinds",
		Summary: "The closed set of provider bindings and their configuration",
		Content: topicProviders,
	},
	{
		Name:    "placeholders",
		Title:   "Prompt Placeholders",
		Summary: "Built-in placeholders substituted into phase prompt templates",
		Content: topicPlaceholders,
	},
	{
		Name:    "execution",
		Title:   "Execution Model",
		Summary: "Sequencing, parallel groups, iteration, retries, and approvals",
		Content: topicExecution,
	},
	{
		Name:    "budget",
		Title:   "Budget Ledger",
		Summary: "The three-scope budget ledger and cost estimation",
		Content: topicBudget,
	},
}

const topicQuickstart = `Quick Start
===========

1. Initialize a project:

    cd your-project
    orc init

   This creates .orc/templates/default.yaml: an AI-generated workflow
   template tailored to the project, or a minimal default if generation
   fails.

2. Edit .orc/templates/default.yaml to define your workflow. A template is
   an ordered list of phases; each phase names a provider, a prompt
   template, and a success pattern.

3. Create and run an execution:

    orc create --template .orc/templates/default.yaml --task "add pagination to the users list"
    orc run <execution-id>

4. Check progress:

    orc status <execution-id>

5. Serve the event stream and web approvals UI:

    orc serve

CLI Commands
------------

  orc init                      Scaffold .orc/templates/default.yaml
  orc create                    Create a new workflow execution
  orc run <execution-id>        Enter the sequencing loop for an execution
  orc status [execution-id]     Show execution status, or list all
  orc cancel <execution-id>     Cancel a running or paused execution
  orc resume <execution-id>     Resume a paused execution
  orc approve <execution-id>    Approve a pending approval gate
  orc reject <execution-id>     Reject a pending approval gate
  orc doctor <execution-id>     AI-assisted diagnosis of a failed execution
  orc serve                     Serve the event stream and approvals API
  orc docs [topic]              List or show documentation topics
`

const topicTemplate = `Template Reference
==================

Workflow templates are YAML documents, normally stored under
.orc/templates/ and loaded by path with 'orc create --template'.

Top-level fields
----------------

  id                  string   Generated if omitted.
  name                string   Required.
  description         string   Optional.
  phases              list     Required. See "Phase fields" below.
  max_iterations      int      Default: 3.
  iteration_behavior  string   "auto_iterate" (default) or "pause_for_approval".
  failure_behavior    string   "pause_notify" (default), "fallback_provider",
                                or "skip_phase".
  budget_limit        float    Optional USD ceiling.
  budget_scope        string   "execution" (default), "project", or "global".

Phase fields
------------

  id                    string   Generated if omitted.
  name                  string   Required.
  role                  string   Informational: analyzer, planner,
                                  implementer, reviewer_functional,
                                  reviewer_style, reviewer_security,
                                  reviewer_custom, verifier, browser_verifier.
  provider_config       object   Required. See 'orc docs providers'.
  prompt_template       string   Required. See 'orc docs placeholders'.
  output_artifact_type  string   task_list, codebase_docs,
                                  implementation_plan, code_diff,
                                  review_report, verification_report,
                                  browser_verification_report, or custom.
  success_pattern       string   See "Success Pattern" below.
  can_skip              bool     Whether the orchestrator's SkipPhase call may
                                  mark this phase skipped while it is current.
  can_iterate           bool     Whether a failed success pattern loops the
                                  workflow back to the top instead of failing.
  max_retries           int      Default: 2. Transient-failure retry budget.
  timeout_seconds       int      Default: 3600.
  parallel_with         string   id of another phase to run concurrently.
  order                 int      Primary sequencing key.

Success Pattern
----------------

The success_pattern field classifies a phase's raw output as a success or a
failure:

  - A pattern beginning with '/' is a literal, case-insensitive substring
    match; the leading slash is part of the literal ("/done" matches
    "ok /done" but not "ok done").
  - Any other non-empty pattern is a case-insensitive regular expression
    (falling back to a literal substring match if it fails to compile).
  - An empty pattern always classifies as success.

Example
-------

  name: ship-a-feature
  max_iterations: 3
  iteration_behavior: auto_iterate
  failure_behavior: pause_notify
  budget_limit: 5.00
  budget_scope: execution

  phases:
    - id: plan
      name: Plan
      role: planner
      order: 1
      provider_config:
        provider_type: cli_tool
        model_name: opus
      prompt_template: |
        Task: {task_description}
        Project: {project_path}
        Write an implementation plan.
      output_artifact_type: implementation_plan
      success_pattern: ""

    - id: implement
      name: Implement
      role: implementer
      order: 2
      provider_config:
        provider_type: cli_tool
        model_name: opus
      prompt_template: |
        Plan: {artifact:plan}
        Implement the plan in {project_path}.
      output_artifact_type: code_diff
      can_iterate: true
      max_retries: 2
      success_pattern: "/no issues found"

    - id: review
      name: Review
      role: reviewer_functional
      order: 3
      parallel_with: implement
      provider_config:
        provider_type: openai
        model_name: gpt-4o
      prompt_template: |
        Review this diff for correctness: {artifact:implement}
      output_artifact_type: review_report
`

const topicProviders = `Provider Kinds
==============

provider_config.provider_type is one of a closed set of 12 kinds. Each binds
to a concrete client:

  cli_tool                Shells out to a local CLI agent (os/exec).
  sdk_agent                Shells out to a local SDK-driven agent (os/exec).
  generic_openai_http       Any OpenAI-compatible HTTP endpoint (api_url required).
  openrouter                OpenRouter's OpenAI-compatible API.
  openai                    OpenAI's API directly.
  gemini_direct             Google Gemini via API key.
  gemini_oauth              Google Gemini via OAuth credentials.
  gemini_via_openrouter     Gemini models proxied through OpenRouter.
  cloud_code_assist         Anthropic models via direct API access.
  local_ollama              A local Ollama server (api_url optional).
  local_lm_studio           A local LM Studio server (api_url optional).
  none                      Placeholder kind; its generate call always
                             fails, so a phase bound to it always fails.

provider_config fields
----------------------

  provider_type      string    Required. One of the kinds above.
  model_name         string    Required (except "none").
  api_url            string    Base URL for generic_openai_http. For
                                local_ollama and local_lm_studio it
                                defaults to ORC_OLLAMA_URL /
                                ORC_LM_STUDIO_URL (or
                                http://localhost:11434/v1 and
                                http://localhost:1234/v1).
  temperature        float     Default: 0.1.
  context_length     int       Default: 8192.
  extra_params       map       Passed through to the underlying client.
  fallback_provider  object    A nested provider_config consulted only when
                                the phase's failure_behavior is
                                fallback_provider; tried once before the
                                orchestrator escalates to pause_notify.

API keys are read from the environment: OPENAI_API_KEY,
OPENROUTER_API_KEY, GEMINI_API_KEY, ANTHROPIC_API_KEY. Local providers
(ollama, lm studio) need no key. No orc command probes the local
endpoints; a phase bound to one simply fails if the server is not
reachable.

Every remote provider call is wrapped in a circuit breaker keyed by
(provider kind, model). A provider that trips its breaker fails fast with a
transient error until the breaker's cooldown elapses, rather than retrying
against a provider that is already down.
`

const topicPlaceholders = `Prompt Placeholders
====================

Phase prompt_template strings are rendered with simple placeholder
substitution before being sent to a provider:

  {task_description}      The execution's task_description.
  {project_path}          The execution's project_path.
  {artifact:NAME}          The content of the most recent artifact whose
                            name contains NAME as a case-insensitive
                            substring (first match wins). If no artifact
                            matches, the placeholder is replaced with a
                            not-found sentinel rather than failing the
                            phase outright.

Placeholders are matched literally; there is no nested templating or
conditional logic. Keep prompt_template focused on what the phase should do
and let upstream artifacts carry context forward.
`

const topicExecution = `Execution Model
===============

orc sequences a template's phases as a deterministic state machine.

Ordering and Parallel Groups
-----------------------------

Phases run in stable order by their 'order' field. Phases that share the
same parallel_with anchor (the anchor phase plus every phase naming it)
form one concurrent group; the group completes when every member reaches a
terminal state, and the group's outcome is the worst of its members'
outcomes (failed > skipped > completed).

Per-Group Sequencing
---------------------

Before each group runs:

  1. If the execution has been cancelled, it stops immediately.
  2. The execution-scope budget is checked; if exhausted, the execution
     transitions to budget_exceeded.
  3. In interactive mode, phases the orchestrator treats as sensitive
     (the implementer role, any reviewer role, or the first phase of a
     new iteration) pause for a human approval before running.

Retries
-------

A phase whose attempt fails with a transient error (its recorded error
text mentions "transient", a rate limit, a tripped circuit breaker, or a
503/429 status)
is retried up to its max_retries, with exponential backoff starting at
500ms and capped at 10s. Retries do not create additional phase-execution
records; only the final outcome is recorded.

Failure Handling
----------------

When a phase's final attempt is still failed, the template's
failure_behavior governs what happens next:

  pause_notify        The execution pauses; a human resumes it later.
  fallback_provider    The phase is re-run once against its
                        fallback_provider, then escalates to pause_notify
                        if that also fails.
  skip_phase           The phase is marked skipped and sequencing continues,
                        whether or not the phase has can_skip set.

Iteration
---------

A can_iterate phase whose output fails its success_pattern check triggers
the iteration loop: depending on iteration_behavior, the execution either
automatically re-enters the sequencing loop from the top (auto_iterate) or
pauses for a human decision (pause_for_approval). Iteration stops once
max_iterations is reached.

Cancellation
------------

orc cancel <execution-id> cancels the execution's context; any in-flight
phase is abandoned and any pending approval is torn down without being
recorded as a rejection. orc resume takes a paused execution and re-runs
its current iteration from the first phase group; phases that already
completed in that iteration run again.
`

const topicBudget = `Budget Ledger
=============

Every provider call is metered against a three-scope ledger:

  execution    The workflow execution that made the call.
  project      The project the execution belongs to, if any.
  global       A single ledger shared by the whole orc instance.

A phase's cost is estimated from its token counts using a static per-model
price table (with a conservative default for unlisted models), then debited
atomically across all three scopes. If any scope's limit is exceeded after
the debit, the phase still completes and its artifact is still persisted —
only the execution transitions to budget_exceeded, a terminal state: no
further phases run and orc resume does not accept it.

Set budget_limit / budget_scope on a template to bound the executions it
produces, or use 'orc create --budget <usd>' to set an execution-specific
limit independent of its template.
`

// SchemaReference returns the combined template, provider, and placeholder
// documentation suitable for embedding in prompts.
func SchemaReference() string {
	return topicTemplate + "\n\n" + topicProviders + "\n\n" + topicPlaceholders
}

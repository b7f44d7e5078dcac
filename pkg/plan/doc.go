// Package plan defines the static plan catalog and feature gating rules.
//
// Plans are identified by string ID and bundle feature flags with numeric
// limits. Subscriptions reference plans by ID only; features are resolved at
// read time against the current registry, so changing a plan definition takes
// effect immediately for every subscriber without touching stored rows.
//
// Feature values are integers with two conventions:
//
//   - Unlimited (-1) removes the cap entirely.
//   - 0 means the feature is absent: HasFeature reports false and limit
//     checks treat it as a hard floor (a plan with team_members: 0 admits
//     nobody). Only -1 lifts a limit.
//
// Boolean flags are stored as 0/1 and may be written as true/false in YAML.
package plan

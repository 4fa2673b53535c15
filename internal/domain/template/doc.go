// Package template models reusable stage/task templates and the state
// machine used when a template is materialized into an owner.
package template

// Package job defines the persisted job record, its lifecycle states, the
// execution outcome value, and the persistence contract implemented by the
// backends under store/.
package job

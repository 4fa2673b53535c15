// Package ports declares the seams of the tracker. HTTP handlers call the
// service ports (TrackerService, TemplateService); the app layer calls the
// repository and change-feed ports, which the storage adapters implement.
package ports

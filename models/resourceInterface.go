package models

type Resource interface {
	GetOrganizationId() string
}

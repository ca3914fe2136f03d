package mocks

//go:generate mockgen -destination=./mock_connector.go -package=mocks github.com/rxtech-lab/argo-live-trader/internal/exchange Connector

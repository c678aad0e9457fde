package types

const (
	ActionRabbitMQConnected       = "rabbitmq_connected"
	ActionRabbitConnectionClosed  = "rabbitmq_connection_closed"
	ActionRabbitConnectionClosing = "rabbitmq_connection_closing"
	ActionRabbitReconnected       = "rabbitmq_reconnection_success"

	ActionDatabaseTransactionFailed = "database_transaction_failed"
	ActionZoneTick                  = "zone_evaluation_tick"
	ActionZoneTickPanic             = "zone_tick_panic_recovered"
	ActionGlobalDisable             = "global_surge_disable"
)

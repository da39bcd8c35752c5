// Package discord — минимальный клиент Discord для бота клан-батла.
//
// Client ходит в REST API v10 (Authorization: Bot <token>): ответы на
// взаимодействия, чтение и правка сообщений, регистрация слэш-команд, поиск
// участников. Ошибки API возвращаются как *APIError; 429 повторяется после
// retry_after.
//
// Gateway держит websocket-сессию (gorilla/websocket): hello, identify или
// resume, heartbeat с проверкой ACK, dispatch событий READY/RESUMED/
// INTERACTION_CREATE. При обрыве соединение устанавливается заново с
// экспоненциальным backoff (1s…30s), сессия по возможности продолжается.
//
// Пример:
//
//	rest := discord.NewClient(token, appID)
//	gw := discord.NewGateway(token, discord.IntentGuilds)
//	gw.OnInteraction = func(ctx context.Context, in *discord.Interaction) {
//	    _ = rest.Respond(ctx, in, discord.InteractionResponse{Type: discord.ResponseDeferredUpdateMsg})
//	}
//	_ = gw.Run(ctx)
package discord

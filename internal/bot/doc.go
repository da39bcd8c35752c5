// Package bot — прикладной бот клан-батла поверх discord, roster и doccache.
// Бот:
//   - обрабатывает слэш-команды (ростер, калькуляторы переноса, уведомления,
//     шаблоны объявлений, настройки для админов, отчёты);
//   - обрабатывает кнопки, селекты и модалки ростера: каждое действие
//     превращается в преобразование строк и проходит через doccache.Cache,
//     так что одновременные нажатия не теряют записей;
//   - дублирует действия в канал уведомлений гильдии по его уровню;
//   - раз в день публикует отчёт "凸完了報告" в зарегистрированные каналы.
//
// Жизненный цикл:
//   - LoadConfig() читает окружение.
//   - New(cfg, platform, store) собирает бота; platform — обычно *discord.Client.
//   - HandleInteraction вешается на discord.Gateway.OnInteraction.
//   - RunReports(ctx) крутится в отдельной горутине до отмены ctx.
//
// Пример:
//
//	b, err := bot.New(cfg, rest, st, bot.WithLogger(log))
//	if err != nil { return err }
//	gw.OnInteraction = b.HandleInteraction
//	go b.RunReports(ctx)
//	return gw.Run(ctx)
//
// Ответы пользователю — на японском. Ошибка "у участника
// нет записи" — не сбой, а эфемерный ответ "対象凸がありません。".
package bot

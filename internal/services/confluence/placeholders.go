package confluence

import (
	"fmt"
	"net/http"
	"strings"
)

// Placeholder texts stand in for page content that could not be fetched, so
// the analysis still records why the material is missing.

// NoCredentialsPlaceholder explains how to configure wiki access
func NoCredentialsPlaceholder(baseURL, pageID string) string {
	return strings.TrimSpace(fmt.Sprintf(`
❌ CONFLUENCE НЕ НАСТРОЕН

Для анализа Confluence страниц необходимо настроить аутентификацию:

1. Добавьте в .env файл:
   CONFLUENCE_USERNAME=your-email@company.com
   CONFLUENCE_PASSWORD=your-api-token

2. Создайте API токен и используйте его как CONFLUENCE_PASSWORD

💡 ВАЖНО: Используйте полный URL из адресной строки браузера:
   ✅ %sspaces/PROJECT/pages/123456/PageName
   ✅ %sx/ABC123

URL страницы: %spages/%s

Без аутентификации невозможно:
• Получить содержимое страниц
• Найти дочерние страницы
• Скачать вложенные файлы
• Выполнить полноценный анализ

Настройте Confluence для получения расширенного анализа.`, baseURL, baseURL, baseURL, pageID))
}

// NoCredentialsTitle is the document title used with NoCredentialsPlaceholder
func NoCredentialsTitle(pageID string) string {
	return fmt.Sprintf("Confluence страница (ID: %s)", pageID)
}

// FetchErrorTitle is the document title used with FetchErrorPlaceholder
func FetchErrorTitle(pageID string) string {
	return fmt.Sprintf("Ошибка загрузки (ID: %s)", pageID)
}

// FetchErrorPlaceholder describes a failed page fetch, specific to the HTTP status
func FetchErrorPlaceholder(baseURL, pageID string, err error) string {
	pageURL := fmt.Sprintf("%spages/%s", baseURL, pageID)

	switch StatusCode(err) {
	case http.StatusUnauthorized:
		return strings.TrimSpace(fmt.Sprintf(`
❌ ОШИБКА АУТЕНТИФИКАЦИИ (401)

Неверные учетные данные Confluence:
• Проверьте CONFLUENCE_USERNAME (должен быть email)
• Проверьте CONFLUENCE_PASSWORD (должен быть API токен, не пароль)
• Убедитесь, что пользователь имеет доступ к Confluence

URL страницы: %s`, pageURL))

	case http.StatusNotFound:
		return strings.TrimSpace(fmt.Sprintf(`
❌ СТРАНИЦА НЕ НАЙДЕНА (404)

Возможные причины:
• Страница была удалена или перемещена
• Неверный ID страницы: %s
• Нет прав доступа к странице
• Страница находится в закрытом пространстве

💡 СОВЕТ: Убедитесь, что используете полный URL из браузера:
   ✅ %sspaces/PROJECT/pages/123456/PageName
   ✅ %sx/ABC123
   ❌ Не используйте внутренние ссылки или фрагменты URL

Оригинальный URL: %s`, pageID, baseURL, baseURL, pageURL))

	case http.StatusForbidden:
		return strings.TrimSpace(fmt.Sprintf(`
❌ ДОСТУП ЗАПРЕЩЕН (403)

Пользователь не имеет прав на чтение страницы:
• Обратитесь к администратору Confluence
• Убедитесь, что у пользователя есть доступ к пространству
• Проверьте права доступа к странице

URL страницы: %s`, pageURL))

	default:
		return strings.TrimSpace(fmt.Sprintf(`
❌ ОШИБКА ПОДКЛЮЧЕНИЯ К CONFLUENCE

Детали ошибки: %v

URL страницы: %s

Проверьте:
• Доступность Confluence сервера
• Правильность базового URL
• Сетевые настройки`, err, pageURL))
	}
}

// UnresolvedPlaceholder describes a link no resolution strategy could map
func UnresolvedPlaceholder(pageURL string, err error) string {
	return strings.TrimSpace(fmt.Sprintf(`
❌ НЕ УДАЛОСЬ ОПРЕДЕЛИТЬ СТРАНИЦУ CONFLUENCE

Ссылка: %s
Детали: %v

💡 Используйте полный URL страницы из адресной строки браузера
(вида .../spaces/PROJECT/pages/123456/PageName).`, pageURL, err))
}

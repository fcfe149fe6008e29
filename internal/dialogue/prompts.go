// ABOUTME: User-facing prompt texts for the dialogue engine
// ABOUTME: All contact-visible copy lives here, in Spanish

package dialogue

const (
	mainMenuText = "Escribe el número de la opción que necesitas:\n\n" +
		"1️⃣ Consultar mi deuda\n" +
		"2️⃣ Hablar con un asesor\n\n" +
		"Puedes escribir *menu* en cualquier momento para volver aquí, o *salir* para terminar."

	askNamePrompt = "¡Hola! 👋 Soy el asistente virtual de Solvencia.\n" +
		"Para comenzar, ¿cuál es tu nombre?"

	nameRejectedPrompt = "Ese nombre no parece válido. Escríbelo sin números y con al menos 3 letras, por favor."

	unrecognizedPrefix = "No entendí tu respuesta. "

	resetNotice = "Listo, volvemos al inicio. "

	disclaimerText = "Antes de consultar tu deuda debes aceptar nuestra política de " +
		"tratamiento de datos personales (solvencia.co/politica-datos).\n\n" +
		"¿Aceptas? Responde *sí* o *no*."

	disclaimerReprompt = "Necesito una respuesta clara: escribe *sí* para aceptar o *no* para volver al menú."

	askCedulaPrompt = "Escribe tu número de cédula, sin puntos ni espacios."

	cedulaRejectedPrompt = "El número de cédula debe tener al menos 5 dígitos. Inténtalo de nuevo."

	clientNotFoundText = "No encontramos registros asociados a ese documento. " +
		"Verifica el número o escribe *2* para hablar con un asesor."

	surveyPrompt = "Antes de irte, ¿cómo calificarías la atención?\n\n" +
		"1️⃣ Mala\n2️⃣ Regular\n3️⃣ Excelente\n\n" +
		"También puedes dejarnos un comentario."

	surveyThanksText = "¡Gracias por tu respuesta! Que tengas un buen día. 👋"

	// SessionExpiredText is sent when the inactivity timer expires an idle session.
	SessionExpiredText = "Tu sesión expiró por inactividad. Escríbenos de nuevo cuando quieras. 👋"

	// HoldingText is sent while the contact waits for a human agent.
	HoldingText = "Un momento por favor, te comunico con uno de nuestros asesores. 🧑‍💼"

	// ApologyText is the generic failure reply sent from the router boundary.
	ApologyText = "Lo sentimos, algo salió mal de nuestro lado. " +
		"Un asesor revisará tu caso en breve."

	// NoPendingDebtText doubles as the sentinel checked when picking the
	// good-news framing for the consultation reply.
	NoPendingDebtText = "No registras deudas pendientes con nosotros."

	debtSummaryHeader = "Esto es lo que encontramos a tu nombre:\n\n"

	goodNewsPrefix = "🎉 ¡Buenas noticias! "
)

func greeting(name string) string {
	return "¡Hola de nuevo, " + name + "! 😊\n\n" + mainMenuText
}

func welcome(name string) string {
	return "Mucho gusto, " + name + ". 😊\n\n" + mainMenuText
}

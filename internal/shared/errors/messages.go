package errors

import (
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// genericMessage is used when no catalog entry matches the code.
const genericMessage = "An unexpected error occurred while processing the payment"

var messagesByLanguage = map[language.Tag]map[ErrorCode]string{
	language.English: {
		CodeInvalidRequest:        "The payment request is invalid",
		CodeNotConfigured:         "The checkout has not been configured",
		CodeMerchantFetchFailed:   "Could not load the merchant configuration",
		CodeCustomerOperation:     "Could not register or fetch the customer",
		CodeOrderCreationFailed:   "Could not create the order",
		CodePaymentCreationFailed: "Could not create the payment",
		CodeRouterSubmission:      "The payment could not be processed",
		CodeSecureTokenFailed:     "Could not obtain a secure token",
		CodeCardFetchFailed:       "Could not fetch the saved cards",
		CodeCardSaveFailed:        "Could not save the card",
		CodeCardRemoveFailed:      "Could not remove the card",
		CodePaymentMethodsFailed:  "Could not fetch the payment methods",
		CodeVerificationFailed:    "Could not verify the transaction",
		CodeChallengeFailed:       "The 3-D Secure challenge could not be started",
		CodeMountFailed:           "Could not mount the card fields",
		CodeCollectFailed:         "Could not tokenize the card fields",
		CodeContextNotMounted:     "The card fields are not mounted",
		CodeFingerprintFailed:     "Could not collect the device fingerprint",
		CodeUnknown:               genericMessage,
	},
	language.Spanish: {
		CodeInvalidRequest:        "La solicitud de pago no es válida",
		CodeNotConfigured:         "El checkout no ha sido configurado",
		CodeMerchantFetchFailed:   "No se pudo cargar la configuración del comercio",
		CodeCustomerOperation:     "No se pudo registrar u obtener el cliente",
		CodeOrderCreationFailed:   "No se pudo crear la orden",
		CodePaymentCreationFailed: "No se pudo crear el pago",
		CodeRouterSubmission:      "No se pudo procesar el pago",
		CodeSecureTokenFailed:     "No se pudo obtener el token seguro",
		CodeCardFetchFailed:       "No se pudieron obtener las tarjetas guardadas",
		CodeCardSaveFailed:        "No se pudo guardar la tarjeta",
		CodeCardRemoveFailed:      "No se pudo eliminar la tarjeta",
		CodePaymentMethodsFailed:  "No se pudieron obtener los métodos de pago",
		CodeVerificationFailed:    "No se pudo verificar la transacción",
		CodeChallengeFailed:       "No se pudo iniciar el desafío 3-D Secure",
		CodeMountFailed:           "No se pudieron montar los campos de la tarjeta",
		CodeCollectFailed:         "No se pudieron tokenizar los campos de la tarjeta",
		CodeContextNotMounted:     "Los campos de la tarjeta no están montados",
		CodeFingerprintFailed:     "No se pudo obtener la huella del dispositivo",
		CodeUnknown:               "Ocurrió un error inesperado al procesar el pago",
	},
}

var (
	messageCatalog = buildCatalog()

	printerMu sync.RWMutex
	printer   = message.NewPrinter(language.English, message.Catalog(messageCatalog))
)

func buildCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for tag, messages := range messagesByLanguage {
		for code, msg := range messages {
			_ = b.SetString(tag, string(code), msg)
		}
	}
	return b
}

// SetLocale selects the language used for default messages.
// Unknown locales fall back to English.
func SetLocale(locale string) {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}

	printerMu.Lock()
	printer = message.NewPrinter(tag, message.Catalog(messageCatalog))
	printerMu.Unlock()
}

func resolveMessage(override string, code ErrorCode) string {
	if override != "" {
		return override
	}

	printerMu.RLock()
	p := printer
	printerMu.RUnlock()

	return p.Sprintf(message.Key(string(code), genericMessage))
}

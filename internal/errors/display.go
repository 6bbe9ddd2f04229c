package errors

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/viper"
)

// DisplayError formats and prints a LogCrafterError with colorized,
// actionable output. Non-LogCrafterErrors fall back to a plain message.
func DisplayError(err error) {
	noColor := os.Getenv("NO_COLOR") != "" || os.Getenv("LOGCRAFTER_NO_COLOR") != ""
	if getViperBool("output.no_color") {
		noColor = true
	}
	color.NoColor = noColor

	lcErr, ok := err.(*LogCrafterError)
	if !ok {
		color.Red("Error: %v", err)
		return
	}

	colorFunc := getErrorStyle(lcErr.Type)

	fmt.Fprintf(os.Stderr, "\n%s\n", colorFunc("[%s] %s", lcErr.Component, lcErr.Message))

	if lcErr.Cause != "" {
		fmt.Fprintf(os.Stderr, "   %s %s\n", color.YellowString("Cause:"), color.HiBlackString(lcErr.Cause))
	}
	if lcErr.Environment != "" {
		fmt.Fprintf(os.Stderr, "   %s %s\n", color.CyanString("Environment:"), color.HiBlackString(lcErr.Environment))
	}
	if len(lcErr.Solutions) > 0 {
		fmt.Fprintf(os.Stderr, "\n   %s\n", color.GreenString("Solutions:"))
		for i, solution := range lcErr.Solutions {
			fmt.Fprintf(os.Stderr, "   %s %s\n", color.HiBlackString(fmt.Sprintf("%d.", i+1)), solution)
		}
	}

	fmt.Fprintln(os.Stderr)
}

// getErrorStyle returns the color function used for an error's header line.
func getErrorStyle(t Type) func(format string, a ...interface{}) string {
	switch t {
	case TypeConfiguration:
		return color.YellowString
	case TypeFileSystem:
		return color.MagentaString
	case TypeNetwork:
		return color.RedString
	case TypeValidation:
		return color.YellowString
	default:
		return color.RedString
	}
}

// FormatErrorWithContext renders err as plain, uncolored text with extra
// key/value context, suitable for CI logs.
func FormatErrorWithContext(err error, context map[string]string) string {
	var sb strings.Builder

	lcErr, ok := err.(*LogCrafterError)
	if !ok {
		sb.WriteString(fmt.Sprintf("Error: %v\n", err))
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("Error: %s\n", lcErr.Message))
	sb.WriteString(fmt.Sprintf("Type: %s/%s\n", lcErr.Type, lcErr.Component))

	if lcErr.Cause != "" {
		sb.WriteString(fmt.Sprintf("Cause: %s\n", lcErr.Cause))
	}

	if len(context) > 0 {
		sb.WriteString("\nContext:\n")
		for k, v := range context {
			sb.WriteString(fmt.Sprintf("  %s: %s\n", k, v))
		}
	}

	if len(lcErr.Solutions) > 0 {
		sb.WriteString("\nSolutions:\n")
		for i, solution := range lcErr.Solutions {
			sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, solution))
		}
	}

	return sb.String()
}

// DisplayWarning prints a warning line to stderr.
func DisplayWarning(message string) {
	color.NoColor = os.Getenv("NO_COLOR") != ""
	fmt.Fprintf(os.Stderr, "Warning: %s\n", color.YellowString(message))
}

// DisplaySuccess prints a success line to stderr.
func DisplaySuccess(message string) {
	color.NoColor = os.Getenv("NO_COLOR") != ""
	fmt.Fprintf(os.Stderr, "Success: %s\n", color.GreenString(message))
}

// DisplayInfo prints an informational line to stderr.
func DisplayInfo(message string) {
	color.NoColor = os.Getenv("NO_COLOR") != ""
	fmt.Fprintf(os.Stderr, "Info: %s\n", color.BlueString(message))
}

// getViperBool reads a bool key from viper without panicking when unset.
func getViperBool(key string) bool {
	if viper.IsSet(key) {
		return viper.GetBool(key)
	}
	return false
}

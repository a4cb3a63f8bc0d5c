package main

import "fmt"

func hasExplainFlag(arguments []string) bool {
	for _, argument := range arguments {
		if argument == "--explain" {
			return true
		}
	}
	return false
}

func writeExplain(text string) int {
	fmt.Println(text)
	return exitOK
}
